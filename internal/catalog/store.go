package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Riotcoke123/clipper/internal/domain"
)

// Store persists the canonical catalog snapshot to a well-known path,
// satisfying §8 property 2 (readers never observe a truncated write) via a
// write-to-temp-then-rename sequence — os.Rename is atomic within the same
// filesystem, which is the only property this needs and no third-party
// library in the dependency set adds anything over it, so this component is
// stdlib-only by design.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save atomically replaces the persisted snapshot.
func (s *Store) Save(_ context.Context, snap domain.CatalogSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. A missing file yields an empty
// snapshot rather than an error, so first-run startup has no prior catalog
// to fall back to.
func (s *Store) Load(_ context.Context) (domain.CatalogSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.CatalogSnapshot{}, nil
	}
	if err != nil {
		return domain.CatalogSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.CatalogSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.CatalogSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
