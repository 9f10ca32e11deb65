// Package nav is the client-side router: the route table, the current location and
// the login redirect used by the global 401 handler.
package nav

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Fixed paths.
const (
	Root       = "/"
	Login      = "/login"
	Loading    = "/loading"
	Onboarding = "/onboarding"
	Main       = "/main"
	Data       = "/data"
	Upload     = "/data/upload"
	MyPage     = "/mypage"
)

// Detail returns the material detail path.
func Detail(id int64) string { return fmt.Sprintf("/data/%d", id) }

// Edit returns the material edit path.
func Edit(id int64) string { return fmt.Sprintf("/data/edit/%d", id) }

// Route names a screen.
type Route int

const (
	RouteUnknown Route = iota
	RouteSetting
	RouteLogin
	RouteLoading
	RouteOnboarding
	RouteMain
	RouteData
	RouteUpload
	RouteEdit
	RouteDetail
	RouteMyPage
)

// Shell reports whether the route renders inside the shared navigation shell.
func (r Route) Shell() bool {
	switch r {
	case RouteMain, RouteData, RouteUpload, RouteEdit, RouteDetail, RouteMyPage:
		return true
	}
	return false
}

// Resolve maps a path onto a route and, for /data/:id and /data/edit/:id, the id.
func Resolve(path string) (Route, int64) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	switch path {
	case Root:
		return RouteSetting, 0
	case Login:
		return RouteLogin, 0
	case Loading:
		return RouteLoading, 0
	case Onboarding:
		return RouteOnboarding, 0
	case Main:
		return RouteMain, 0
	case Data:
		return RouteData, 0
	case Upload:
		return RouteUpload, 0
	case MyPage:
		return RouteMyPage, 0
	}
	if rest, ok := strings.CutPrefix(path, "/data/edit/"); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil && id > 0 {
			return RouteEdit, id
		}
		return RouteUnknown, 0
	}
	if rest, ok := strings.CutPrefix(path, "/data/"); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil && id > 0 {
			return RouteDetail, id
		}
	}
	return RouteUnknown, 0
}

// Router holds the current location. Safe for concurrent use.
type Router struct {
	mu        sync.Mutex
	path      string
	history   []string
	listeners map[int]func(string)
	nextID    int
}

// NewRouter starts at the given path.
func NewRouter(start string) *Router {
	if start == "" {
		start = Root
	}
	return &Router{path: start, history: []string{start}, listeners: map[int]func(string){}}
}

// Path returns the current location.
func (r *Router) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// History returns every location visited, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Navigate moves to path and notifies listeners.
func (r *Router) Navigate(path string) {
	r.mu.Lock()
	r.path = path
	r.history = append(r.history, path)
	ls := make([]func(string), 0, len(r.listeners))
	for _, fn := range r.listeners {
		ls = append(ls, fn)
	}
	r.mu.Unlock()

	for _, fn := range ls {
		fn(path)
	}
}

// RedirectToLogin navigates to /login unless already there. The check and the move
// happen under one lock so concurrent 401s redirect once.
func (r *Router) RedirectToLogin() bool {
	r.mu.Lock()
	if r.path == Login {
		r.mu.Unlock()
		return false
	}
	r.path = Login
	r.history = append(r.history, Login)
	ls := make([]func(string), 0, len(r.listeners))
	for _, fn := range r.listeners {
		ls = append(ls, fn)
	}
	r.mu.Unlock()

	for _, fn := range ls {
		fn(Login)
	}
	return true
}

// Subscribe registers fn for location changes; the returned func unregisters it.
func (r *Router) Subscribe(fn func(path string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}
