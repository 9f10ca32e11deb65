package nav

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path  string
		route Route
		id    int64
		shell bool
	}{
		{"/", RouteSetting, 0, false},
		{"/login", RouteLogin, 0, false},
		{"/loading", RouteLoading, 0, false},
		{"/onboarding", RouteOnboarding, 0, false},
		{"/main", RouteMain, 0, true},
		{"/data", RouteData, 0, true},
		{"/data/", RouteData, 0, true},
		{"/data/upload", RouteUpload, 0, true},
		{"/data/edit/7", RouteEdit, 7, true},
		{"/data/42", RouteDetail, 42, true},
		{"/data/42?tab=x", RouteDetail, 42, true},
		{"/mypage", RouteMyPage, 0, true},
		{"/data/abc", RouteUnknown, 0, false},
		{"/data/edit/0", RouteUnknown, 0, false},
		{"/nope", RouteUnknown, 0, false},
	}
	for _, tc := range cases {
		r, id := Resolve(tc.path)
		assert.Equal(t, tc.route, r, tc.path)
		assert.Equal(t, tc.id, id, tc.path)
		assert.Equal(t, tc.shell, r.Shell(), tc.path)
	}
	assert.Equal(t, "/data/3", Detail(3))
	assert.Equal(t, "/data/edit/3", Edit(3))
}

func TestRouter_RedirectToLoginOnce(t *testing.T) {
	t.Parallel()

	r := NewRouter(Data)
	var notified atomic.Int32
	unsub := r.Subscribe(func(p string) {
		if p == Login {
			notified.Add(1)
		}
	})
	defer unsub()

	var wg sync.WaitGroup
	var moved atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.RedirectToLogin() {
				moved.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), moved.Load())
	require.Equal(t, int32(1), notified.Load())
	require.Equal(t, Login, r.Path())
	require.Equal(t, []string{Data, Login}, r.History())
}

func TestRouter_NavigateAndUnsubscribe(t *testing.T) {
	t.Parallel()

	r := NewRouter("")
	require.Equal(t, Root, r.Path())

	var seen []string
	unsub := r.Subscribe(func(p string) { seen = append(seen, p) })
	r.Navigate(Main)
	unsub()
	r.Navigate(MyPage)

	require.Equal(t, []string{Main}, seen)
	require.Equal(t, MyPage, r.Path())
}
