package draft

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goliatone/go-formsheet/pkg/answers"
)

// DefaultSlot is the key the accumulated answers are stored under.
const DefaultSlot = "multiStepFormData"

// Store is a single-slot durable draft store.
type Store interface {
	// Load returns the saved answers or ErrNoDraft.
	Load(ctx context.Context) (*answers.Mapping, error)
	// Save replaces the saved answers.
	Save(ctx context.Context, value *answers.Mapping) error
	// Clear removes the saved answers. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// MemoryStore keeps drafts in process. Values are stored encoded so callers
// can never alias a saved mapping.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string][]byte
	slot  string
}

// NewMemoryStore returns an empty in-memory store using DefaultSlot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte), slot: DefaultSlot}
}

func (m *MemoryStore) Load(ctx context.Context) (*answers.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	data, ok := m.slots[m.slot]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoDraft
	}
	return answers.ParseMapping(data)
}

func (m *MemoryStore) Save(ctx context.Context, value *answers.Mapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := answers.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.slots[m.slot] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.slots, m.slot)
	m.mu.Unlock()
	return nil
}

// FileStore persists drafts in a JSON file holding an object of slots. Writes
// go to a temporary file in the same directory which is then renamed over
// the original.
type FileStore struct {
	mu   sync.Mutex
	path string
	slot string
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSlot overrides the slot key.
func WithSlot(slot string) FileOption {
	return func(s *FileStore) {
		if slot != "" {
			s.slot = slot
		}
	}
}

// NewFileStore stores drafts at path. The parent directory is created on
// first save.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("draft: file store path is required")
	}
	s := &FileStore{path: path, slot: DefaultSlot}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*answers.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	v, ok := doc.Get(s.slot)
	if !ok {
		return nil, ErrNoDraft
	}
	m, ok := v.(*answers.Mapping)
	if !ok {
		return nil, fmt.Errorf("draft: slot %q in %s holds %s, not an object", s.slot, s.path, v.Kind())
	}
	return m, nil
}

func (s *FileStore) Save(ctx context.Context, value *answers.Mapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if value == nil {
		value = answers.NewMapping()
	}
	doc.Set(s.slot, value)
	return s.write(doc)
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if !doc.Delete(s.slot) {
		return nil
	}
	if doc.Len() == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("draft: remove %s: %w", s.path, err)
		}
		return nil
	}
	return s.write(doc)
}

func (s *FileStore) read() (*answers.Mapping, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return answers.NewMapping(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("draft: read %s: %w", s.path, err)
	}
	doc, err := answers.ParseMapping(data)
	if err != nil {
		return nil, fmt.Errorf("draft: decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc *answers.Mapping) error {
	data, err := answers.Marshal(doc)
	if err != nil {
		return fmt.Errorf("draft: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("draft: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("draft: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("draft: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("draft: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("draft: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("draft: replace %s: %w", s.path, err)
	}
	return nil
}
