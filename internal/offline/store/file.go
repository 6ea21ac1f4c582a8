package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"shiftledger/internal/offline/domain"
)

// FileStore keeps the queue in a single JSON file so queued events survive a
// process restart. Writes go to a temp file in the same directory and are
// renamed over the target, so a crash mid-write never corrupts the queue.
type FileStore struct {
	mu     sync.Mutex
	path   string
	events []*domain.Event
}

// NewFileStore opens or creates the queue file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("offline store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.events); err != nil {
		return fmt.Errorf("offline store: parse %s: %w", s.path, err)
	}
	return nil
}

// flush writes the whole queue atomically. Caller holds the lock.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.events, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".queue-*.tmp")
	if err != nil {
		return fmt.Errorf("offline store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("offline store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("offline store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("offline store: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Append(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *e
	s.events = append(s.events, &copied)
	return s.flush()
}

func (s *FileStore) Pending(ctx context.Context) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Event, 0, len(s.events))
	for _, e := range s.events {
		if e.Status == domain.StatusPending {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *FileStore) Update(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.events {
		if existing.ID == e.ID {
			copied := *e
			s.events[i] = &copied
			return s.flush()
		}
	}
	return nil
}

func (s *FileStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.events {
		if existing.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return s.flush()
		}
	}
	return nil
}
