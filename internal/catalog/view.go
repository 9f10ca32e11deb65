// Package catalog is the material browse screen: debounced keyword search, server-side
// semester and "latest" sorting, client-side filters and re-sorts of the fetched page,
// and page-numbered navigation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
	"github.com/and161185/jokbo/internal/options"
)

// MsgLoadFailed replaces the list when a fetch fails.
const MsgLoadFailed = "자료를 불러오지 못했습니다."

// DefaultDebounce is the quiet period between the last keystroke and the request.
const DefaultDebounce = 250 * time.Millisecond

// ErrClosed is returned by operations on a closed view.
var ErrClosed = errors.New("catalog: view closed")

// Sort is a sort selector label.
type Sort string

const (
	SortLatest      Sort = "최신순"
	SortRecommended Sort = "추천순"
	SortDownloads   Sort = "다운로드순"
)

// Sorts lists the selector labels in display order.
var Sorts = []Sort{SortLatest, SortRecommended, SortDownloads}

// Filter is the popup filter panel. Semester is a "YYYY-S" label and goes to the
// server; the other fields only narrow the page already fetched. Empty means any.
type Filter struct {
	Semester  string
	Grade     string
	Major     string
	Professor string
	Category  string
}

// Fetcher loads one page of the catalog.
type Fetcher interface {
	ListMaterials(ctx context.Context, q model.MaterialQuery) (*model.MaterialPage, error)
}

// State is a snapshot for rendering.
type State struct {
	Keyword    string
	Sort       Sort
	Filter     Filter
	Page       int
	TotalPages int
	TotalCount int
	Pages      []int
	Items      []model.MaterialSummary
	Loading    bool
	Err        string
}

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(v *View) { v.log = l } }

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option { return func(v *View) { v.debounce = d } }

// WithOnChange registers a callback invoked with a fresh State after every change.
func WithOnChange(fn func(State)) Option { return func(v *View) { v.onChange = fn } }

// View is safe for concurrent use.
type View struct {
	src      Fetcher
	log      *zap.Logger
	debounce time.Duration
	onChange func(State)

	mu         sync.Mutex
	keyword    string
	sort       Sort
	filter     Filter
	year       int
	semester   int
	page       int
	totalPages int
	totalCount int
	raw        []model.MaterialSummary
	loading    bool
	errMsg     string
	gen        uint64
	timer      *time.Timer
	pending    uint64 // sequence of the latest debounce timer
	closed     bool
}

// New returns a view on page 1 sorted by SortLatest. Nothing is fetched until Load.
func New(src Fetcher, opts ...Option) *View {
	v := &View{
		src:        src,
		log:        zap.NewNop(),
		debounce:   DefaultDebounce,
		sort:       SortLatest,
		page:       1,
		totalPages: 1,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Load fetches the current page.
func (v *View) Load(ctx context.Context) error {
	return v.fetch(ctx)
}

// SetKeyword records the keyword, resets to page 1 and schedules a fetch after the
// debounce window. A later call within the window replaces the pending fetch.
func (v *View) SetKeyword(ctx context.Context, keyword string) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.keyword = keyword
	v.page = 1
	if v.timer != nil {
		v.timer.Stop()
	}
	v.pending++
	seq := v.pending
	v.timer = time.AfterFunc(v.debounce, func() {
		if err := v.fetchAt(ctx, seq); err != nil && !errors.Is(err, ErrClosed) {
			v.log.Debug("debounced fetch failed", zap.String("keyword", keyword), zap.Error(err))
		}
	})
	v.mu.Unlock()
	v.notify()
}

// SetSort switches the sort selector. SortLatest is a server sort and refetches page 1;
// the others re-sort the fetched page in memory without a request.
func (v *View) SetSort(ctx context.Context, s Sort) error {
	switch s {
	case SortLatest, SortRecommended, SortDownloads:
	default:
		return errs.Validation(fmt.Sprintf("알 수 없는 정렬입니다: %s", s))
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	prev := v.sort
	v.sort = s
	if s != SortLatest || prev == SortLatest {
		v.mu.Unlock()
		v.notify()
		return nil
	}
	v.page = 1
	v.mu.Unlock()
	return v.fetch(ctx)
}

// ApplyFilter replaces the whole filter set. Only a semester change triggers a fetch
// (and resets to page 1).
func (v *View) ApplyFilter(ctx context.Context, f Filter) error {
	year, sem := 0, 0
	if f.Semester != "" {
		var err error
		if year, sem, err = options.ParseSemesterLabel(f.Semester); err != nil {
			return errs.Validation("학기 형식이 올바르지 않습니다.")
		}
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	changed := year != v.year || sem != v.semester
	v.filter = f
	v.year, v.semester = year, sem
	if !changed {
		v.mu.Unlock()
		v.notify()
		return nil
	}
	v.page = 1
	v.mu.Unlock()
	return v.fetch(ctx)
}

// GoToPage fetches page p. The current page and pages outside [1, TotalPages] are no-ops.
func (v *View) GoToPage(ctx context.Context, p int) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if p == v.page || p < 1 || p > v.totalPages {
		v.mu.Unlock()
		return nil
	}
	v.page = p
	v.mu.Unlock()
	return v.fetch(ctx)
}

// Query replaces keyword, filter, sort and page at once and fetches immediately,
// dropping any pending debounced search.
func (v *View) Query(ctx context.Context, keyword string, f Filter, s Sort, page int) error {
	switch s {
	case SortLatest, SortRecommended, SortDownloads:
	default:
		return errs.Validation(fmt.Sprintf("알 수 없는 정렬입니다: %s", s))
	}
	year, sem := 0, 0
	if f.Semester != "" {
		var err error
		if year, sem, err = options.ParseSemesterLabel(f.Semester); err != nil {
			return errs.Validation("학기 형식이 올바르지 않습니다.")
		}
	}
	if page < 1 {
		page = 1
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	v.pending++
	v.keyword = keyword
	v.filter = f
	v.year, v.semester = year, sem
	v.sort = s
	v.page = page
	v.mu.Unlock()
	return v.fetch(ctx)
}

// Close cancels any pending debounce and discards responses still in flight.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.gen++
	v.pending++
	if v.timer != nil {
		v.timer.Stop()
	}
}

// State returns a snapshot.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) stateLocked() State {
	return State{
		Keyword:    v.keyword,
		Sort:       v.sort,
		Filter:     v.filter,
		Page:       v.page,
		TotalPages: v.totalPages,
		TotalCount: v.totalCount,
		Pages:      PageWindow(v.page, v.totalPages),
		Items:      visible(v.raw, v.filter, v.sort),
		Loading:    v.loading,
		Err:        v.errMsg,
	}
}

func (v *View) notify() {
	if v.onChange == nil {
		return
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	st := v.stateLocked()
	v.mu.Unlock()
	v.onChange(st)
}

// fetch requests the current query. A response that arrives after a newer fetch
// started, or after Close, is dropped.
func (v *View) fetch(ctx context.Context) error { return v.fetchAt(ctx, 0) }

// fetchAt is fetch for debounce timer seq. Timer.Stop cannot recall a callback that
// already fired, so a non-zero seq that is no longer the latest one fetches nothing.
func (v *View) fetchAt(ctx context.Context, seq uint64) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if seq != 0 && seq != v.pending {
		v.mu.Unlock()
		return nil
	}
	v.gen++
	gen := v.gen
	q := model.MaterialQuery{
		Keyword:  v.keyword,
		Year:     v.year,
		Semester: v.semester,
		Page:     v.page,
	}
	if v.sort == SortLatest {
		q.SortBy = "latest"
	}
	v.loading = true
	v.mu.Unlock()
	v.notify()

	page, err := v.src.ListMaterials(ctx, q)

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		v.log.Debug("stale material page dropped", zap.Int("page", q.Page), zap.String("keyword", q.Keyword))
		return nil
	}
	v.loading = false
	if errs.Handled(err) {
		v.mu.Unlock()
		v.notify()
		return fmt.Errorf("list materials: %w", err)
	}
	if err != nil {
		v.raw = nil
		v.errMsg = MsgLoadFailed
		v.mu.Unlock()
		v.log.Error("material list fetch failed", zap.Int("page", q.Page), zap.String("keyword", q.Keyword), zap.Error(err))
		v.notify()
		return fmt.Errorf("list materials: %w", err)
	}
	v.errMsg = ""
	v.raw = page.Materials
	v.totalCount = page.PageInfo.TotalCount
	v.totalPages = page.PageInfo.TotalPages
	if v.totalPages < 1 {
		v.totalPages = 1
	}
	if page.PageInfo.CurrentPage > 0 {
		v.page = page.PageInfo.CurrentPage
	}
	v.mu.Unlock()
	v.notify()
	return nil
}

// PageWindow returns the page buttons: current-2 through current+2, clipped to [1, total].
func PageWindow(current, total int) []int {
	lo, hi := current-2, current+2
	if lo < 1 {
		lo = 1
	}
	if hi > total {
		hi = total
	}
	out := make([]int, 0, 5)
	for p := lo; p <= hi; p++ {
		out = append(out, p)
	}
	return out
}

// visible applies the client-side filters and re-sorts to a copy of the page.
func visible(raw []model.MaterialSummary, f Filter, s Sort) []model.MaterialSummary {
	prof := fold(f.Professor)
	out := make([]model.MaterialSummary, 0, len(raw))
	for _, m := range raw {
		if f.Grade != "" && m.Grade != f.Grade {
			continue
		}
		if f.Major != "" && m.Major != f.Major {
			continue
		}
		if f.Category != "" && m.CourseDivision != f.Category {
			continue
		}
		if prof != "" && !strings.Contains(fold(m.ProfessorName), prof) {
			continue
		}
		out = append(out, m)
	}
	switch s {
	case SortRecommended:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ReviewCount > out[j].ReviewCount })
	case SortDownloads:
		sort.SliceStable(out, func(i, j int) bool { return out[i].DownloadCount > out[j].DownloadCount })
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
