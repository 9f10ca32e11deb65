// Package account holds the screens around the signed-in user: the loading gate,
// onboarding, the profile page and logout.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/nav"
	"github.com/and161185/jokbo/internal/options"
)

// User-facing messages.
const (
	MsgMajorRequired = "전공을 선택해주세요."
	MsgUnknownMajor  = "목록에 없는 전공입니다."
	MsgOnboardFailed = "정보 저장에 실패했습니다."
	MsgProfileFailed = "사용자 정보를 불러오지 못했습니다."
	MsgSaved         = "저장되었습니다."
	MsgSaveFailed    = "저장에 실패했습니다."
	MsgNickRequired  = "닉네임을 입력해주세요."
)

// Source is the subset of the API client the account screens use.
type Source interface {
	GetMe(ctx context.Context) (*model.User, error)
	UpdateMe(ctx context.Context, upd model.UserUpdate) (*model.User, error)
	Onboard(ctx context.Context, req model.Onboarding) (*model.Onboarding, error)
	Logout(ctx context.Context) error
}

// Navigator moves between screens.
type Navigator interface {
	Navigate(path string)
}

// Dialog shows alerts.
type Dialog interface {
	Alert(msg string)
}

// Session is the locally stored credential.
type Session interface {
	Clear() error
}

var validate = validator.New()

// Gate decides where a freshly signed-in user lands: /main once onboarded,
// /onboarding otherwise. A 401 is left to the global login redirect; any other
// failure sends the user to /login. The destination is returned, "" on 401.
func Gate(ctx context.Context, src Source, n Navigator, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	u, err := src.GetMe(ctx)
	if err != nil {
		if errs.Handled(err) {
			return "", err
		}
		log.Error("user check failed", zap.Error(err))
		n.Navigate(nav.Login)
		return nav.Login, err
	}
	dest := nav.Onboarding
	if u.Onboarding {
		dest = nav.Main
	}
	n.Navigate(dest)
	return dest, nil
}

// Onboard submits the major and the optional minor. The major must be one of the
// known majors other than 없음; a minor of 없음 or "" is sent as null.
func Onboard(ctx context.Context, src Source, n Navigator, major, minor string) error {
	req, err := onboarding(major, minor)
	if err != nil {
		return err
	}
	if _, err := src.Onboard(ctx, req); err != nil {
		return fmt.Errorf("onboard: %w", err)
	}
	n.Navigate(nav.Main)
	return nil
}

func onboarding(major, minor string) (model.Onboarding, error) {
	req := model.Onboarding{Major: strings.TrimSpace(major), Minor: minorOf(minor)}
	if err := validate.Struct(req); err != nil || req.Major == options.None {
		return req, errs.Validation(MsgMajorRequired)
	}
	if !knownMajor(req.Major) || (req.Minor != nil && !knownMajor(*req.Minor)) {
		return req, errs.Validation(MsgUnknownMajor)
	}
	return req, nil
}

func minorOf(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == options.None {
		return nil
	}
	return &s
}

func knownMajor(m string) bool {
	_, ok := options.Find(options.Majors(), m)
	return ok
}

// Logout ends the server session, then always drops the local one and goes to /login.
func Logout(ctx context.Context, src Source, sess Session, n Navigator, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	var err error
	if lerr := src.Logout(ctx); lerr != nil && !errors.Is(lerr, errs.ErrUnauthorized) {
		log.Warn("server logout failed", zap.Error(lerr))
		err = fmt.Errorf("logout: %w", lerr)
	}
	if sess != nil {
		if cerr := sess.Clear(); cerr != nil {
			log.Error("clearing session failed", zap.Error(cerr))
			err = errors.Join(err, fmt.Errorf("clear session: %w", cerr))
		}
	}
	n.Navigate(nav.Login)
	return err
}
