// Package points caches the viewer's point balance. The cache is refreshed
// explicitly after any action that earns or spends points; readers subscribe
// instead of fetching on their own.
package points

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/model"
)

// Source fetches the current balance.
type Source interface {
	PointBalance(ctx context.Context) (*model.PointEntry, error)
}

// Store is safe for concurrent use.
type Store struct {
	src Source
	log *zap.Logger

	mu      sync.Mutex
	balance int
	loading bool
	subs    map[int]func(balance int)
	nextSub int
}

// New returns a store in the loading state with a zero balance.
func New(src Source, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{src: src, log: log, loading: true, subs: map[int]func(int){}}
}

// Refresh reloads the balance. On failure the previous balance is kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	p, err := s.src.PointBalance(ctx)

	s.mu.Lock()
	s.loading = false
	if err == nil {
		s.balance = p.Amount
	}
	bal := s.balance
	subs := make([]func(int), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if err != nil && !errs.Handled(err) {
		s.log.Error("point balance refresh failed", zap.Error(err))
	}
	for _, fn := range subs {
		fn(bal)
	}
	if err != nil {
		return fmt.Errorf("refresh points: %w", err)
	}
	return nil
}

// Balance returns the cached balance.
func (s *Store) Balance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Loading reports whether a refresh has not completed yet.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe calls fn after every refresh. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(balance int)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
