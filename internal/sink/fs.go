package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucasnoah/repocrew/internal/run"
)

// FSStore is an ObjectStore over a local directory. Keys map to file
// paths under the root; writes are atomic.
type FSStore struct {
	root string
}

// NewFSStore creates an FSStore rooted at dir. Empty dir means
// ~/.repocrew/sink.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".repocrew", "sink")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &FSStore{root: dir}, nil
}

// Put writes one object. The key's directory components are created as
// needed.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	return run.WriteAtomic(path, data)
}
