// Package detail is the material detail screen: the role-gated purchase, download,
// edit and delete actions, and the viewer's single review.
package detail

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/nav"
)

// User-facing messages.
const (
	MsgLoadFailed       = "자료를 불러오지 못했습니다."
	MsgConfirmPurchase  = "200P를 사용하여 자료를 구매하시겠습니까?"
	MsgPurchased        = "포인트가 차감되었습니다."
	MsgPurchaseFailed   = "자료 구매에 실패했습니다."
	MsgNoAttachments    = "다운로드할 파일이 없습니다."
	MsgDownloadFailed   = "파일 다운로드에 실패했습니다."
	MsgReviewInvalid    = "별점(0~5, 0.1 단위)과 후기를 모두 입력해주세요."
	MsgReviewFailed     = "후기 작성에 실패했습니다."
	MsgReviewEditFailed = "후기 수정에 실패했습니다."
	MsgConfirmReviewDel = "후기를 삭제하시겠습니까?"
	MsgReviewDelFailed  = "후기 삭제에 실패했습니다."
	MsgConfirmDelete    = "정말로 삭제하시겠습니까?"
	MsgDeleted          = "자료가 삭제되었습니다."
	MsgDeleteFailed     = "자료 삭제에 실패했습니다."
)

// Source is the subset of the API client the screen uses.
type Source interface {
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	ListReviews(ctx context.Context, materialID int64) ([]model.Review, error)
	GetMe(ctx context.Context) (*model.User, error)
	HasPurchased(ctx context.Context, materialID int64) (bool, error)
	Purchase(ctx context.Context, id int64) error
	DownloadAttachment(ctx context.Context, materialID, attachmentID int64) (*model.Download, error)
	CreateReview(ctx context.Context, req model.ReviewRequest) (*model.Review, error)
	UpdateReview(ctx context.Context, id int64, req model.ReviewRequest) error
	DeleteReview(ctx context.Context, id int64) error
	DeleteMaterial(ctx context.Context, id int64) error
}

// Points is refreshed after a purchase.
type Points interface {
	Refresh(ctx context.Context) error
}

// Navigator moves between screens.
type Navigator interface {
	Navigate(path string)
}

// Dialog shows blocking confirmations and alerts.
type Dialog interface {
	Confirm(msg string) bool
	Alert(msg string)
}

// Saver stores a downloaded file and returns where it went.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// Deps are the collaborators of a View.
type Deps struct {
	Points   Points
	Nav      Navigator
	Dialog   Dialog
	Saver    Saver
	Log      *zap.Logger
	Parallel int // concurrent attachment fetches for a zip; 4 when zero
}

// Draft is the review compose form.
type Draft struct {
	Rating  float64
	Comment string
}

// State is a snapshot for rendering.
type State struct {
	Loaded   bool
	Material model.Material
	Role     Role
	Primary  string
	Mine     *model.Review
	Others   []model.Review
	// Composing is true when the compose form is shown instead of Mine.
	Composing bool
	Editing   bool
	Draft     Draft
	Busy      bool
	Err       string
}

// View is safe for concurrent use. At most one mutating action runs at a time.
type View struct {
	id  int64
	src Source
	d   Deps
	log *zap.Logger

	mu       sync.Mutex
	loaded   bool
	material model.Material
	role     Role
	mine     *model.Review
	others   []model.Review
	editing  bool
	draft    Draft
	busy     bool
	errMsg   string
}

var validate = validator.New()

// New returns a view of material id. Call Load before anything else.
func New(id int64, src Source, d Deps) *View {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Parallel <= 0 {
		d.Parallel = 4
	}
	return &View{id: id, src: src, d: d, log: log.With(zap.Int64("material_id", id))}
}

// Load fetches the material, its reviews, the viewer and the purchase status
// concurrently. Any failure fails the whole load and nothing partial is shown.
func (v *View) Load(ctx context.Context) error {
	var (
		m         *model.Material
		reviews   []model.Review
		me        *model.User
		purchased bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { m, err = v.src.GetMaterial(gctx, v.id); return })
	g.Go(func() (err error) { reviews, err = v.src.ListReviews(gctx, v.id); return })
	g.Go(func() (err error) { me, err = v.src.GetMe(gctx); return })
	g.Go(func() (err error) { purchased, err = v.src.HasPurchased(gctx, v.id); return })

	if err := g.Wait(); err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("load material %d: %w", v.id, err)
		}
		v.mu.Lock()
		v.loaded = false
		v.errMsg = MsgLoadFailed
		v.mu.Unlock()
		v.log.Error("material detail load failed", zap.Error(err))
		return fmt.Errorf("load material %d: %w", v.id, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loaded = true
	v.errMsg = ""
	v.material = *m
	v.role = roleOf(me.ID, me.Nickname, m.AuthorID, m.AuthorName, purchased)
	v.setReviewsLocked(reviews)
	v.editing = false
	v.draft = Draft{}
	return nil
}

func (v *View) setReviewsLocked(rs []model.Review) {
	v.mine = nil
	v.others = make([]model.Review, 0, len(rs))
	for _, r := range rs {
		if r.Author && v.mine == nil {
			mine := r
			v.mine = &mine
			continue
		}
		v.others = append(v.others, r)
	}
}

// State returns a snapshot.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := State{
		Loaded:   v.loaded,
		Material: v.material,
		Role:     v.role,
		Primary:  v.role.Primary(),
		Others:   append([]model.Review(nil), v.others...),
		Editing:  v.editing,
		Draft:    v.draft,
		Busy:     v.busy,
		Err:      v.errMsg,
	}
	if v.mine != nil {
		mine := *v.mine
		st.Mine = &mine
	}
	st.Composing = v.loaded && v.role.Allows(ActionReview) && (v.mine == nil || v.editing)
	return st
}

// begin checks that the view is loaded, the action is legal and nothing else is in
// flight, then marks the view busy.
func (v *View) begin(a Action) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		return fmt.Errorf("%s: material not loaded: %w", a, errs.ErrNotAllowed)
	}
	if !v.role.Allows(a) {
		return fmt.Errorf("%s as %s: %w", a, v.role, errs.ErrNotAllowed)
	}
	if v.busy {
		return fmt.Errorf("%s: %w", a, errs.ErrBusy)
	}
	v.busy = true
	return nil
}

func (v *View) end() {
	v.mu.Lock()
	v.busy = false
	v.mu.Unlock()
}

// Primary runs the main button: purchase or download depending on the role.
func (v *View) Primary(ctx context.Context) error {
	v.mu.Lock()
	role := v.role
	v.mu.Unlock()
	if role == RoleBuyerUnpurchased {
		return v.Purchase(ctx)
	}
	_, err := v.Download(ctx)
	return err
}

// Purchase asks for confirmation, buys the material, refreshes the point balance and
// switches the viewer to the purchased role. On failure nothing changes.
func (v *View) Purchase(ctx context.Context) error {
	if err := v.begin(ActionPurchase); err != nil {
		return err
	}
	defer v.end()

	if !v.d.Dialog.Confirm(MsgConfirmPurchase) {
		return errs.ErrCanceled
	}
	if err := v.src.Purchase(ctx, v.id); err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("purchase %d: %w", v.id, err)
		}
		v.log.Error("purchase failed", zap.Error(err))
		v.d.Dialog.Alert(errs.Message(err, MsgPurchaseFailed))
		return fmt.Errorf("purchase %d: %w", v.id, err)
	}
	if v.d.Points != nil {
		if err := v.d.Points.Refresh(ctx); err != nil {
			v.log.Warn("point refresh after purchase failed", zap.Error(err))
		}
	}
	v.mu.Lock()
	v.role = RoleBuyerPurchased
	v.mu.Unlock()
	v.d.Dialog.Alert(MsgPurchased)
	return nil
}

// EditPath returns the edit route. Authors only.
func (v *View) EditPath() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded || !v.role.Allows(ActionEdit) {
		return "", fmt.Errorf("edit as %s: %w", v.role, errs.ErrNotAllowed)
	}
	return nav.Edit(v.id), nil
}

// Edit navigates to the edit form. Authors only.
func (v *View) Edit() error {
	p, err := v.EditPath()
	if err != nil {
		return err
	}
	v.d.Nav.Navigate(p)
	return nil
}

// DeleteMaterial deletes the material after confirmation and returns to the list.
func (v *View) DeleteMaterial(ctx context.Context) error {
	if err := v.begin(ActionDelete); err != nil {
		return err
	}
	defer v.end()

	if !v.d.Dialog.Confirm(MsgConfirmDelete) {
		return errs.ErrCanceled
	}
	if err := v.src.DeleteMaterial(ctx, v.id); err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("delete material %d: %w", v.id, err)
		}
		v.log.Error("material delete failed", zap.Error(err))
		v.d.Dialog.Alert(MsgDeleteFailed)
		return fmt.Errorf("delete material %d: %w", v.id, err)
	}
	v.d.Dialog.Alert(MsgDeleted)
	v.d.Nav.Navigate(nav.Data)
	return nil
}

// --- reviews ---

// StartEdit opens the compose form pre-filled with the viewer's review.
func (v *View) StartEdit() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mine == nil || !v.role.Allows(ActionReview) {
		return fmt.Errorf("edit review: %w", errs.ErrNotAllowed)
	}
	v.editing = true
	v.draft = Draft{Rating: v.mine.Rating, Comment: v.mine.Comment}
	return nil
}

// CancelEdit closes the compose form without touching the server.
func (v *View) CancelEdit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editing = false
	v.draft = Draft{}
}

// SetDraft updates the compose form.
func (v *View) SetDraft(d Draft) {
	v.mu.Lock()
	v.draft = d
	v.mu.Unlock()
}

func validateReview(d Draft) (model.ReviewRequest, error) {
	req := model.ReviewRequest{Rating: d.Rating, Comment: strings.TrimSpace(d.Comment)}
	if err := validate.Struct(req); err != nil {
		return req, errs.Validation(MsgReviewInvalid)
	}
	if tenths := req.Rating * 10; math.Abs(tenths-math.Round(tenths)) > 1e-9 {
		return req, errs.Validation(MsgReviewInvalid)
	}
	return req, nil
}

// SubmitReview sends the current draft: an update while editing, a create otherwise.
// Validation failures never reach the network.
func (v *View) SubmitReview(ctx context.Context) error {
	v.mu.Lock()
	draft, editing := v.draft, v.editing
	var mineID int64
	if v.mine != nil {
		mineID = v.mine.ID
	}
	v.mu.Unlock()

	req, err := validateReview(draft)
	if err != nil {
		v.d.Dialog.Alert(MsgReviewInvalid)
		return err
	}
	if !editing && mineID != 0 {
		return fmt.Errorf("second review: %w", errs.ErrNotAllowed)
	}
	if err := v.begin(ActionReview); err != nil {
		return err
	}
	defer v.end()

	if editing {
		if err := v.src.UpdateReview(ctx, mineID, req); err != nil {
			if errs.Handled(err) {
				return fmt.Errorf("update review %d: %w", mineID, err)
			}
			v.log.Error("review update failed", zap.Int64("review_id", mineID), zap.Error(err))
			v.d.Dialog.Alert(errs.Message(err, MsgReviewEditFailed))
			return fmt.Errorf("update review %d: %w", mineID, err)
		}
		v.mu.Lock()
		if v.mine != nil {
			v.mine.Rating, v.mine.Comment = req.Rating, req.Comment
		}
		v.editing = false
		v.draft = Draft{}
		v.mu.Unlock()
	} else {
		req.MaterialID = v.id
		r, err := v.src.CreateReview(ctx, req)
		if err != nil {
			if errs.Handled(err) {
				return fmt.Errorf("create review: %w", err)
			}
			v.log.Error("review create failed", zap.Error(err))
			v.d.Dialog.Alert(errs.Message(err, MsgReviewFailed))
			return fmt.Errorf("create review: %w", err)
		}
		v.mu.Lock()
		mine := *r
		mine.Author = true
		v.mine = &mine
		v.draft = Draft{}
		v.mu.Unlock()
	}
	v.reconcileReviews(ctx)
	return nil
}

// DeleteReview removes the viewer's review after confirmation.
func (v *View) DeleteReview(ctx context.Context) error {
	v.mu.Lock()
	var id int64
	if v.mine != nil {
		id = v.mine.ID
	}
	v.mu.Unlock()
	if id == 0 {
		return fmt.Errorf("delete review: %w", errs.ErrNotFound)
	}
	if err := v.begin(ActionReview); err != nil {
		return err
	}
	defer v.end()

	if !v.d.Dialog.Confirm(MsgConfirmReviewDel) {
		return errs.ErrCanceled
	}
	if err := v.src.DeleteReview(ctx, id); err != nil {
		if errs.Handled(err) {
			return fmt.Errorf("delete review %d: %w", id, err)
		}
		v.log.Error("review delete failed", zap.Int64("review_id", id), zap.Error(err))
		v.d.Dialog.Alert(errs.Message(err, MsgReviewDelFailed))
		return fmt.Errorf("delete review %d: %w", id, err)
	}
	v.mu.Lock()
	v.mine = nil
	v.editing = false
	v.draft = Draft{}
	v.mu.Unlock()
	v.reconcileReviews(ctx)
	return nil
}

// reconcileReviews reloads the review list after a mutation. On failure the local
// update stands.
func (v *View) reconcileReviews(ctx context.Context) {
	rs, err := v.src.ListReviews(ctx, v.id)
	if err != nil {
		if !errs.Handled(err) {
			v.log.Warn("review reload failed", zap.Error(err))
		}
		return
	}
	v.mu.Lock()
	v.setReviewsLocked(rs)
	v.mu.Unlock()
}
