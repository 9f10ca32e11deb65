package account

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
)

// Ledger is the point side of the API client.
type Ledger interface {
	PointBalance(ctx context.Context) (*model.PointEntry, error)
	PointHistory(ctx context.Context) ([]model.PointEntry, error)
}

// ProfileState is a snapshot of the profile page.
type ProfileState struct {
	Loaded  bool
	User    model.User
	Balance int
	History []model.PointEntry
	Editing bool
	Draft   model.UserUpdate
	Err     string
}

// Profile is the my-page view. Safe for concurrent use.
type Profile struct {
	src    Source
	ledger Ledger
	dialog Dialog
	log    *zap.Logger

	mu sync.Mutex
	st ProfileState
}

// NewProfile returns an unloaded profile view.
func NewProfile(src Source, ledger Ledger, dialog Dialog, log *zap.Logger) *Profile {
	if log == nil {
		log = zap.NewNop()
	}
	return &Profile{src: src, ledger: ledger, dialog: dialog, log: log}
}

// Load fetches the user, the balance and the history together. Any failure fails
// the load and leaves the previous state.
func (p *Profile) Load(ctx context.Context) error {
	var (
		u    *model.User
		bal  *model.PointEntry
		hist []model.PointEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { u, err = p.src.GetMe(gctx); return })
	g.Go(func() (err error) { bal, err = p.ledger.PointBalance(gctx); return })
	g.Go(func() (err error) { hist, err = p.ledger.PointHistory(gctx); return })
	if err := g.Wait(); err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("load profile: %w", err)
		}
		p.log.Error("profile load failed", zap.Error(err))
		p.mu.Lock()
		p.st.Err = errs.Message(err, MsgProfileFailed)
		p.mu.Unlock()
		return fmt.Errorf("load profile: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.st = ProfileState{
		Loaded:  true,
		User:    *u,
		Balance: bal.Amount,
		History: hist,
	}
	return nil
}

// StartEdit opens the edit form prefilled with the current profile.
func (p *Profile) StartEdit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.Editing = true
	p.st.Draft = model.UserUpdate{Nickname: p.st.User.Nickname, Major: p.st.User.Major, Minor: p.st.User.Minor}
}

// CancelEdit closes the edit form without saving.
func (p *Profile) CancelEdit() {
	p.mu.Lock()
	p.st.Editing = false
	p.st.Draft = model.UserUpdate{}
	p.mu.Unlock()
}

// SetDraft updates the edit form. A minor of 없음 or "" clears it.
func (p *Profile) SetDraft(nickname, major, minor string) {
	p.mu.Lock()
	p.st.Draft = model.UserUpdate{Nickname: strings.TrimSpace(nickname), Major: strings.TrimSpace(major), Minor: minorOf(minor)}
	p.mu.Unlock()
}

// Save sends the draft and closes the form on success.
func (p *Profile) Save(ctx context.Context) error {
	p.mu.Lock()
	if !p.st.Editing {
		p.mu.Unlock()
		return fmt.Errorf("save profile: %w", errs.ErrNotAllowed)
	}
	d := p.st.Draft
	p.mu.Unlock()

	if d.Nickname == "" {
		p.dialog.Alert(MsgNickRequired)
		return errs.Validation(MsgNickRequired)
	}
	if _, err := onboarding(d.Major, ptr(d.Minor)); err != nil {
		p.dialog.Alert(errs.Message(err, MsgSaveFailed))
		return err
	}
	if err := validate.Struct(d); err != nil {
		p.dialog.Alert(MsgSaveFailed)
		return errs.Validation(MsgSaveFailed)
	}

	u, err := p.src.UpdateMe(ctx, d)
	if err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("save profile: %w", err)
		}
		p.log.Error("profile save failed", zap.Error(err))
		p.dialog.Alert(errs.Message(err, MsgSaveFailed))
		return fmt.Errorf("save profile: %w", err)
	}
	p.mu.Lock()
	p.st.User = *u
	p.st.Editing = false
	p.st.Draft = model.UserUpdate{}
	p.mu.Unlock()
	p.dialog.Alert(MsgSaved)
	return nil
}

func ptr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// State returns a snapshot.
func (p *Profile) State() ProfileState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.st
	st.History = append([]model.PointEntry(nil), p.st.History...)
	return st
}
