// Package memory implements harvest.URLStore on in-process maps. It backs
// tests and dry wiring; nothing survives the process.
package memory

import (
	"context"
	"sync"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

// Store is an in-memory URL store with the same ordering contract as the
// file store.
type Store struct {
	mu         sync.Mutex
	order      []string
	discovered map[string]string
	completed  map[string]harvest.PageResult
	failed     map[string]string
}

var _ harvest.URLStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		discovered: make(map[string]string),
		completed:  make(map[string]harvest.PageResult),
		failed:     make(map[string]string),
	}
}

// Load is a no-op; the store starts empty.
func (s *Store) Load(ctx context.Context) error {
	return ctx.Err()
}

// AddDiscovered merges one topic's URLs into the discovered set.
func (s *Store) AddDiscovered(ctx context.Context, topic string, urls []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := s.discovered[u]; !ok {
			s.order = append(s.order, u)
			added++
		}
		s.discovered[u] = topic
	}
	return added, nil
}

// MarkCompleted records a success unless the URL is already terminal.
func (s *Store) MarkCompleted(ctx context.Context, result harvest.PageResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isTerminal(result.URL) {
		return nil
	}
	s.completed[result.URL] = result
	return nil
}

// MarkFailed records a failure unless the URL is already terminal.
func (s *Store) MarkFailed(ctx context.Context, url, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isTerminal(url) {
		return nil
	}
	s.failed[url] = reason
	return nil
}

// Pending returns discovered minus terminal, in insertion order.
func (s *Store) Pending(ctx context.Context) ([]harvest.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]harvest.Target, 0, len(s.order))
	for _, u := range s.order {
		if s.isTerminal(u) {
			continue
		}
		pending = append(pending, harvest.Target{URL: u, Topic: s.discovered[u]})
	}
	return pending, nil
}

// Counts reports current set sizes.
func (s *Store) Counts(ctx context.Context) (harvest.Counts, error) {
	if err := ctx.Err(); err != nil {
		return harvest.Counts{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := harvest.Counts{
		Discovered: len(s.order),
		Completed:  len(s.completed),
		Failed:     len(s.failed),
	}
	for _, u := range s.order {
		if !s.isTerminal(u) {
			c.Pending++
		}
	}
	return c, nil
}

// Completed returns a copy of the completed mapping, for assertions.
func (s *Store) Completed() map[string]harvest.PageResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]harvest.PageResult, len(s.completed))
	for k, v := range s.completed {
		out[k] = v
	}
	return out
}

// Failed returns a copy of the failed mapping, for assertions.
func (s *Store) Failed() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.failed))
	for k, v := range s.failed {
		out[k] = v
	}
	return out
}

func (s *Store) isTerminal(url string) bool {
	if _, ok := s.completed[url]; ok {
		return true
	}
	_, ok := s.failed[url]
	return ok
}
