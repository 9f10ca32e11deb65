package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
)

type fakeFetcher struct {
	mu      sync.Mutex
	queries []model.MaterialQuery
	items   []model.MaterialSummary
	pages   int
	err     error
	hold    chan struct{} // when set, each call blocks until it is closed or receives
}

func (f *fakeFetcher) ListMaterials(_ context.Context, q model.MaterialQuery) (*model.MaterialPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hold, err, items, pages := f.hold, f.err, f.items, f.pages
	f.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	if pages == 0 {
		pages = 1
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	return &model.MaterialPage{
		PageInfo:  model.PageInfo{CurrentPage: page, TotalPages: pages, TotalCount: len(items)},
		Materials: append([]model.MaterialSummary(nil), items...),
	}, nil
}

func (f *fakeFetcher) calls() []model.MaterialQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.MaterialQuery(nil), f.queries...)
}

func sample() []model.MaterialSummary {
	return []model.MaterialSummary{
		{ID: 1, Title: "a", Grade: "1학년", Major: "철학과", ProfessorName: "김외대", CourseDivision: "전공", ReviewCount: 1, DownloadCount: 9},
		{ID: 2, Title: "b", Grade: "2학년", Major: "사학과", ProfessorName: "이교수", CourseDivision: "교양", ReviewCount: 5, DownloadCount: 2},
		{ID: 3, Title: "c", Grade: "1학년", Major: "사학과", ProfessorName: "Kim Hufs", CourseDivision: "전공", ReviewCount: 5, DownloadCount: 4},
	}
}

func ids(ms []model.MaterialSummary) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestLoad_SendsLatest(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	v := New(f, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, v.Load(context.Background()))

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.MaterialQuery{SortBy: "latest", Page: 1}, calls[0])
	st := v.State()
	assert.Equal(t, []int64{1, 2, 3}, ids(st.Items))
	assert.False(t, st.Loading)
	assert.Empty(t, st.Err)
}

func TestKeywordDebounce_LastKeystrokeWins(t *testing.T) {
	f := &fakeFetcher{items: sample(), pages: 5}
	v := New(f, WithDebounce(40*time.Millisecond), WithLogger(zaptest.NewLogger(t)))
	defer v.Close()
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.GoToPage(ctx, 3))
	require.Len(t, f.calls(), 2)

	for _, kw := range []string{"자", "자료", "자료구"} {
		v.SetKeyword(ctx, kw)
	}
	assert.Equal(t, 1, v.State().Page)

	require.Eventually(t, func() bool { return len(f.calls()) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	calls := f.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "자료구", calls[2].Keyword)
	assert.Equal(t, 1, calls[2].Page)
}

func TestClientFiltersNeverFetch(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	v := New(f)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))

	cases := []struct {
		filter Filter
		want   []int64
	}{
		{Filter{Grade: "1학년"}, []int64{1, 3}},
		{Filter{Major: "사학과"}, []int64{2, 3}},
		{Filter{Category: "교양"}, []int64{2}},
		{Filter{Professor: "kim"}, []int64{3}},
		{Filter{Professor: " 외대 "}, []int64{1}},
		{Filter{Grade: "1학년", Major: "사학과"}, []int64{3}},
		{Filter{}, []int64{1, 2, 3}},
	}
	for _, tc := range cases {
		require.NoError(t, v.ApplyFilter(ctx, tc.filter))
		assert.Equal(t, tc.want, ids(v.State().Items), "%+v", tc.filter)
	}
	assert.Len(t, f.calls(), 1)
}

func TestSemesterFilterFetchesPageOne(t *testing.T) {
	f := &fakeFetcher{items: sample(), pages: 4}
	v := New(f)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.GoToPage(ctx, 2))

	require.NoError(t, v.ApplyFilter(ctx, Filter{Semester: "2024-2", Grade: "1학년"}))
	calls := f.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, 2024, calls[2].Year)
	assert.Equal(t, 2, calls[2].Semester)
	assert.Equal(t, 1, calls[2].Page)
	assert.Equal(t, []int64{1, 3}, ids(v.State().Items))

	// same semester, different client filter: no request
	require.NoError(t, v.ApplyFilter(ctx, Filter{Semester: "2024-2"}))
	assert.Len(t, f.calls(), 3)

	err := v.ApplyFilter(ctx, Filter{Semester: "2024-9"})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Len(t, f.calls(), 3)
}

func TestSort(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	v := New(f)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))

	require.NoError(t, v.SetSort(ctx, SortRecommended))
	assert.Equal(t, []int64{2, 3, 1}, ids(v.State().Items))
	require.NoError(t, v.SetSort(ctx, SortDownloads))
	assert.Equal(t, []int64{1, 3, 2}, ids(v.State().Items))
	assert.Len(t, f.calls(), 1)

	require.NoError(t, v.SetSort(ctx, SortLatest))
	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "latest", calls[1].SortBy)
	assert.Equal(t, []int64{1, 2, 3}, ids(v.State().Items))

	assert.Error(t, v.SetSort(ctx, Sort("인기순")))
}

func TestGoToPage(t *testing.T) {
	f := &fakeFetcher{items: sample(), pages: 7}
	v := New(f)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))

	require.NoError(t, v.GoToPage(ctx, 1))
	require.NoError(t, v.GoToPage(ctx, 0))
	require.NoError(t, v.GoToPage(ctx, 8))
	assert.Len(t, f.calls(), 1)

	require.NoError(t, v.GoToPage(ctx, 5))
	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 5, calls[1].Page)
	st := v.State()
	assert.Equal(t, 5, st.Page)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, st.Pages)
}

func TestPageWindow(t *testing.T) {
	assert.Equal(t, []int{1}, PageWindow(1, 1))
	assert.Equal(t, []int{1, 2, 3}, PageWindow(1, 10))
	assert.Equal(t, []int{2, 3, 4, 5, 6}, PageWindow(4, 10))
	assert.Equal(t, []int{8, 9, 10}, PageWindow(10, 10))
}

func TestClientResortAfterFailureDoesNotFetch(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	v := New(f, WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))

	f.mu.Lock()
	f.err = errors.New("connection refused")
	f.mu.Unlock()
	require.NoError(t, v.SetSort(ctx, SortRecommended))
	assert.Len(t, v.State().Items, 3)
	assert.Len(t, f.calls(), 1)
}

func TestFetchFailureShowsMessage(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	v := New(f, WithLogger(zaptest.NewLogger(t)))
	err := v.Load(context.Background())
	require.Error(t, err)
	st := v.State()
	assert.Equal(t, MsgLoadFailed, st.Err)
	assert.NotNil(t, st.Items)
	assert.Empty(t, st.Items)
	assert.False(t, st.Loading)
}

func TestStaleResponseDropped(t *testing.T) {
	hold := make(chan struct{})
	f := &fakeFetcher{items: sample(), hold: hold}
	v := New(f)

	done := make(chan error, 1)
	go func() { done <- v.Load(context.Background()) }()
	require.Eventually(t, func() bool { return len(f.calls()) == 1 }, time.Second, time.Millisecond)

	v.Close()
	close(hold)
	require.NoError(t, <-done)
	assert.Empty(t, v.State().Items)
	assert.ErrorIs(t, v.Load(context.Background()), ErrClosed)
}

func TestOnChange(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	var mu sync.Mutex
	var states []State
	v := New(f, WithOnChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))
	require.NoError(t, v.Load(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.False(t, states[1].Loading)
	assert.Len(t, states[1].Items, 3)
}

func TestQueryFetchesOnce(t *testing.T) {
	f := &fakeFetcher{items: sample(), pages: 4}
	v := New(f, WithLogger(zaptest.NewLogger(t)), WithDebounce(time.Hour))
	v.SetKeyword(context.Background(), "pending")

	err := v.Query(context.Background(), "운영체제", Filter{Semester: "2024-1", Grade: "1학년"}, SortDownloads, 3)
	require.NoError(t, err)

	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, model.MaterialQuery{Keyword: "운영체제", Year: 2024, Semester: 1, Page: 3}, calls[0])
	st := v.State()
	assert.Equal(t, 3, st.Page)
	assert.Equal(t, []int64{1, 3}, ids(st.Items))

	require.ErrorIs(t, v.Query(context.Background(), "", Filter{Semester: "bad"}, SortLatest, 1), errs.ErrValidation)
	require.ErrorIs(t, v.Query(context.Background(), "", Filter{}, Sort("인기순"), 1), errs.ErrValidation)
	assert.Len(t, f.calls(), 1)
}

func TestFiredDebounceAfterNewKeystrokeIsSkipped(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	v := New(f, WithDebounce(time.Hour), WithLogger(zaptest.NewLogger(t)))
	defer v.Close()
	ctx := context.Background()

	v.SetKeyword(ctx, "운영")
	v.mu.Lock()
	first := v.pending
	v.mu.Unlock()
	v.SetKeyword(ctx, "운영체제")

	// the first timer fired before the second keystroke stopped it
	require.NoError(t, v.fetchAt(ctx, first))
	assert.Empty(t, f.calls())

	require.NoError(t, v.fetchAt(ctx, first+1))
	calls := f.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "운영체제", calls[0].Keyword)

	require.NoError(t, v.Query(ctx, "자료구조", Filter{}, SortLatest, 1))
	require.NoError(t, v.fetchAt(ctx, first+1))
	assert.Len(t, f.calls(), 2)
}

func TestSessionExpiryLeavesNoMessage(t *testing.T) {
	f := &fakeFetcher{items: sample()}
	v := New(f, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, v.Load(context.Background()))

	f.mu.Lock()
	f.err = &errs.APIError{Status: 401}
	f.mu.Unlock()

	err := v.Query(context.Background(), "", Filter{}, SortLatest, 1)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	st := v.State()
	assert.Empty(t, st.Err)
	assert.False(t, st.Loading)
	assert.Equal(t, []int64{1, 2, 3}, ids(st.Items))
}
