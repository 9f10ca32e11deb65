// Package library is the my-materials screen: the purchased and uploaded tabs with
// infinite-scroll paging and per-row actions.
package library

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/nav"
)

// User-facing messages.
const (
	MsgLoadFailed   = "목록을 불러오지 못했습니다."
	MsgConfirmDel   = "정말로 삭제하시겠습니까?"
	MsgDeleted      = "자료가 삭제되었습니다."
	MsgDeleteFailed = "자료 삭제에 실패했습니다."
)

// Tab selects the list.
type Tab int

const (
	TabPurchased Tab = iota
	TabUploaded
)

func (t Tab) String() string {
	if t == TabUploaded {
		return "판매 족보"
	}
	return "구매 족보"
}

// Source is the subset of the API client the screen uses.
type Source interface {
	MyDownloads(ctx context.Context, page int) (*model.MaterialPage, error)
	MyUploads(ctx context.Context, page int) (*model.MaterialPage, error)
	DeleteMaterial(ctx context.Context, id int64) error
}

// Dialog shows blocking confirmations and alerts.
type Dialog interface {
	Confirm(msg string) bool
	Alert(msg string)
}

// State is a snapshot for rendering.
type State struct {
	Tab        Tab
	Items      []model.MaterialSummary
	Page       int
	TotalPages int
	Loading    bool
	Err        string
}

// View is safe for concurrent use; mutations are serialized.
type View struct {
	src    Source
	dialog Dialog
	log    *zap.Logger

	mu         sync.Mutex
	tab        Tab
	items      []model.MaterialSummary
	page       int
	totalPages int
	loading    bool
	errMsg     string
	gen        uint64
	deleting   map[int64]bool
}

// New returns a view on the purchased tab. Nothing is fetched until SwitchTab or Reload.
func New(src Source, dialog Dialog, log *zap.Logger) *View {
	if log == nil {
		log = zap.NewNop()
	}
	return &View{src: src, dialog: dialog, log: log, page: 1, totalPages: 1, deleting: make(map[int64]bool)}
}

// SwitchTab resets the list and fetches page 1 of tab.
func (v *View) SwitchTab(ctx context.Context, tab Tab) error {
	v.mu.Lock()
	v.tab = tab
	v.items = nil
	v.page = 1
	v.totalPages = 1
	v.mu.Unlock()
	return v.fetch(ctx, 1)
}

// Reload refetches page 1 of the current tab.
func (v *View) Reload(ctx context.Context) error {
	return v.SwitchTab(ctx, v.State().Tab)
}

// LoadMore appends the next page when one exists and nothing is loading. It reports
// whether a request was made. The page only advances once the fetch succeeds, so a
// failed page is requested again by the next call.
func (v *View) LoadMore(ctx context.Context) (bool, error) {
	v.mu.Lock()
	if v.loading || v.page >= v.totalPages {
		v.mu.Unlock()
		return false, nil
	}
	next := v.page + 1
	v.mu.Unlock()
	return true, v.fetch(ctx, next)
}

func (v *View) fetch(ctx context.Context, page int) error {
	v.mu.Lock()
	v.gen++
	gen, tab := v.gen, v.tab
	v.loading = true
	v.errMsg = ""
	v.mu.Unlock()

	var (
		res *model.MaterialPage
		err error
	)
	if tab == TabUploaded {
		res, err = v.src.MyUploads(ctx, page)
	} else {
		res, err = v.src.MyDownloads(ctx, page)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return nil
	}
	v.loading = false
	if errs.Handled(err) {
		return fmt.Errorf("load %s page %d: %w", tab, page, err)
	}
	if err != nil {
		v.errMsg = errs.Message(err, MsgLoadFailed)
		v.log.Error("my materials fetch failed", zap.Stringer("tab", tab), zap.Int("page", page), zap.Error(err))
		return fmt.Errorf("load %s page %d: %w", tab, page, err)
	}
	if page == 1 {
		v.items = append([]model.MaterialSummary(nil), res.Materials...)
	} else {
		v.items = append(v.items, res.Materials...)
	}
	v.page = page
	v.totalPages = res.PageInfo.TotalPages
	return nil
}

// Remove hides a purchased row locally; there is no server call.
func (v *View) Remove(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tab != TabPurchased {
		return fmt.Errorf("remove %d: %w", id, errs.ErrNotAllowed)
	}
	v.removeLocked(id)
	return nil
}

// Delete deletes an uploaded material after confirmation and drops its row. A second
// Delete of the same row while the first is pending returns errs.ErrBusy.
func (v *View) Delete(ctx context.Context, id int64) error {
	v.mu.Lock()
	if v.tab != TabUploaded {
		v.mu.Unlock()
		return fmt.Errorf("delete %d: %w", id, errs.ErrNotAllowed)
	}
	if v.deleting[id] {
		v.mu.Unlock()
		return fmt.Errorf("delete %d: %w", id, errs.ErrBusy)
	}
	v.deleting[id] = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		delete(v.deleting, id)
		v.mu.Unlock()
	}()

	if !v.dialog.Confirm(MsgConfirmDel) {
		return errs.ErrCanceled
	}
	if err := v.src.DeleteMaterial(ctx, id); err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("delete material %d: %w", id, err)
		}
		v.log.Error("material delete failed", zap.Int64("material_id", id), zap.Error(err))
		v.dialog.Alert(MsgDeleteFailed)
		return fmt.Errorf("delete material %d: %w", id, err)
	}
	v.mu.Lock()
	v.removeLocked(id)
	v.mu.Unlock()
	v.dialog.Alert(MsgDeleted)
	return nil
}

func (v *View) removeLocked(id int64) {
	out := v.items[:0]
	for _, m := range v.items {
		if m.ID != id {
			out = append(out, m)
		}
	}
	v.items = out
}

// EditPath is where the edit action of an uploaded row navigates.
func EditPath(id int64) string { return nav.Edit(id) }

// DetailPath is where clicking a row navigates.
func DetailPath(id int64) string { return nav.Detail(id) }

// State returns a snapshot.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	items := make([]model.MaterialSummary, len(v.items))
	copy(items, v.items)
	return State{
		Tab:        v.tab,
		Items:      items,
		Page:       v.page,
		TotalPages: v.totalPages,
		Loading:    v.loading,
		Err:        v.errMsg,
	}
}
