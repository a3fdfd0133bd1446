package mappingstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

// FSStore serves mapping documents from a local directory. Paths are
// slash-separated and relative to the directory; paths escaping it are
// reported as not found.
type FSStore struct {
	dir  string
	root *os.Root
}

// OpenFS opens dir as a mapping store. Close releases the directory handle.
func OpenFS(dir string) (*FSStore, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open mapping dir %q: %w", dir, err)
	}
	return &FSStore{dir: dir, root: root}, nil
}

// Dir returns the directory the store was opened on.
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) Close() error {
	if s == nil || s.root == nil {
		return nil
	}
	return s.root.Close()
}

// ReadFile returns the raw bytes stored at p.
func (s *FSStore) ReadFile(p string) ([]byte, error) {
	name, ok := localStorePath(p)
	if !ok {
		return nil, &maperr.NotFoundError{Path: p}
	}
	b, err := s.root.ReadFile(filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &maperr.NotFoundError{Path: p, Cause: err}
		}
		return nil, err
	}
	return b, nil
}

func (s *FSStore) FetchJSON(ctx context.Context, p string) (*mapping.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return mapping.Decode(p, b)
}

// localStorePath cleans p into a slash-separated path inside the store.
// Empty paths and paths escaping the store report false.
func localStorePath(p string) (string, bool) {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p == "" {
		return "", false
	}
	name := path.Clean(p)
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", false
	}
	return name, true
}

var _ mapping.Store = (*FSStore)(nil)
