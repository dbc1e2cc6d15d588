// Package file implements harvest.URLStore on three JSON files in the state
// directory. Every save rewrites the full mapping to a temporary file and
// renames it over the target, so readers and crashed runs only ever observe
// complete documents.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harvestlab/topic-harvester/internal/harvest"
	"github.com/harvestlab/topic-harvester/internal/urlstore"
)

// Store is a file-backed URL store. Safe for concurrent use, though the
// engine serializes all mutation through its own loop.
type Store struct {
	dir string

	mu         sync.Mutex
	discovered *orderedMap[string]
	completed  *orderedMap[harvest.PageResult]
	failed     *orderedMap[string]
}

var _ harvest.URLStore = (*Store)(nil)

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{
		dir:        dir,
		discovered: newOrderedMap[string](),
		completed:  newOrderedMap[harvest.PageResult](),
		failed:     newOrderedMap[string](),
	}, nil
}

// Load reads the three state files. Missing files leave their sets empty;
// unparseable files surface as *urlstore.CorruptionError.
func (s *Store) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loadMapping(s.path(urlstore.DiscoveredFile), s.discovered); err != nil {
		return err
	}
	if err := loadMapping(s.path(urlstore.CompletedFile), s.completed); err != nil {
		return err
	}
	return loadMapping(s.path(urlstore.FailedFile), s.failed)
}

// AddDiscovered merges one topic's URLs and persists the discovered mapping.
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
		if !s.discovered.has(u) {
			added++
		}
		s.discovered.set(u, topic)
	}
	if err := s.saveMapping(urlstore.DiscoveredFile, s.discovered); err != nil {
		return added, err
	}
	return added, nil
}

// MarkCompleted records a success. Already-terminal URLs are left untouched.
func (s *Store) MarkCompleted(ctx context.Context, result harvest.PageResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isTerminal(result.URL) {
		return nil
	}
	s.completed.set(result.URL, result)
	return s.saveTerminal()
}

// MarkFailed records a failure reason. Already-terminal URLs are left
// untouched.
func (s *Store) MarkFailed(ctx context.Context, url, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isTerminal(url) {
		return nil
	}
	s.failed.set(url, reason)
	return s.saveTerminal()
}

// Pending returns discovered minus terminal, in discovery insertion order.
func (s *Store) Pending(ctx context.Context) ([]harvest.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]harvest.Target, 0, s.discovered.len())
	for _, u := range s.discovered.keys {
		if s.isTerminal(u) {
			continue
		}
		topic, _ := s.discovered.get(u)
		pending = append(pending, harvest.Target{URL: u, Topic: topic})
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
		Discovered: s.discovered.len(),
		Completed:  s.completed.len(),
		Failed:     s.failed.len(),
	}
	for _, u := range s.discovered.keys {
		if !s.isTerminal(u) {
			c.Pending++
		}
	}
	return c, nil
}

// isTerminal must be called with the lock held.
func (s *Store) isTerminal(url string) bool {
	return s.completed.has(url) || s.failed.has(url)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// saveTerminal persists both terminal mappings; the contract is that every
// outcome flushes completed and failed together.
func (s *Store) saveTerminal() error {
	if err := s.saveMapping(urlstore.CompletedFile, s.completed); err != nil {
		return err
	}
	return s.saveMapping(urlstore.FailedFile, s.failed)
}

func (s *Store) saveMapping(name string, m json.Marshaler) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	var indented []byte
	if indented, err = indent(data); err != nil {
		return fmt.Errorf("indent %s: %w", name, err)
	}
	return atomicWrite(s.path(name), indented)
}

func indent(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// atomicWrite writes data to path via a sibling temp file and rename, so a
// crash mid-write never leaves a truncated state file behind.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func loadMapping(path string, target json.Unmarshaler) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := target.UnmarshalJSON(data); err != nil {
		return &urlstore.CorruptionError{Path: path, Err: err}
	}
	return nil
}
