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

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// FileStore persists the list as a JSON array in a single file.
type FileStore struct {
	path  string
	limit int
	clock clock.Clock
	log   *zap.Logger

	mu sync.Mutex
}

// NewFileStore 创建文件存储，目录不存在时自动创建。
func NewFileStore(path string, limit int, clk clock.Clock, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, limit: normalizeLimit(limit), clock: clk, log: logger}, nil
}

func (s *FileStore) Save(_ context.Context, record interview.SavedInterview) (interview.SavedInterview, error) {
	record = stamp(record, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.readLocked()
	if err != nil {
		return interview.SavedInterview{}, err
	}
	if err := s.writeLocked(prepend(list, record, s.limit)); err != nil {
		return interview.SavedInterview{}, err
	}
	return record, nil
}

func (s *FileStore) List(_ context.Context) ([]interview.SavedInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *FileStore) Get(_ context.Context, id string) (interview.SavedInterview, error) {
	if id == "" {
		return interview.SavedInterview{}, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.readLocked()
	if err != nil {
		return interview.SavedInterview{}, err
	}
	i, ok := find(list, id)
	if !ok {
		return interview.SavedInterview{}, ErrNotFound
	}
	return list[i], nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.readLocked()
	if err != nil {
		return err
	}
	i, ok := find(list, id)
	if !ok {
		return ErrNotFound
	}
	return s.writeLocked(append(list[:i:i], list[i+1:]...))
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

// readLocked loads the list. A corrupt file is logged and treated as empty.
func (s *FileStore) readLocked() ([]interview.SavedInterview, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []interview.SavedInterview{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	var list []interview.SavedInterview
	if err := json.Unmarshal(data, &list); err != nil {
		s.log.Warn("discarding unreadable interview store", zap.String("path", s.path), zap.Error(err))
		return []interview.SavedInterview{}, nil
	}
	return list, nil
}

func (s *FileStore) writeLocked(list []interview.SavedInterview) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".interviews-*.json")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}
