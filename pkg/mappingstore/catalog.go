package mappingstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

// CatalogEntry describes one mapping file found under a catalog directory.
type CatalogEntry struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
}

// Issue is a mapping file that failed to resolve.
type Issue struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Err  error  `json:"-"`
}

func (i Issue) Error() string {
	if i.Err == nil {
		return i.Path
	}
	return i.Path + ": " + i.Err.Error()
}

// ReloadResult summarizes a catalog rescan.
type ReloadResult struct {
	Entries int
	Changed []string
	Issues  []Issue
}

// Catalog indexes the mapping files of a directory and validates that each
// of them resolves. It is safe for concurrent use.
type Catalog struct {
	dir string

	mu      sync.RWMutex
	entries map[string]CatalogEntry
	issues  []Issue
}

func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, entries: map[string]CatalogEntry{}}
}

func (c *Catalog) Dir() string {
	return c.dir
}

// Reload rescans the directory, resolves every mapping with a fresh cache
// and records the outcome. Changed lists added, removed and modified paths.
func (c *Catalog) Reload(ctx context.Context) (ReloadResult, error) {
	scanned, err := scanMappingDir(c.dir)
	if err != nil {
		return ReloadResult{}, err
	}
	issues, err := validateEntries(ctx, c.dir, scanned)
	if err != nil {
		return ReloadResult{}, err
	}

	c.mu.Lock()
	changed := diffEntries(c.entries, scanned)
	c.entries = scanned
	c.issues = issues
	c.mu.Unlock()

	return ReloadResult{Entries: len(scanned), Changed: changed, Issues: issues}, nil
}

// Entries returns the indexed files sorted by path.
func (c *Catalog) Entries() []CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Issues returns the validation failures from the last reload.
func (c *Catalog) Issues() []Issue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Issue(nil), c.issues...)
}

// IsMappingFile reports whether name looks like a mapping document.
func IsMappingFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func scanMappingDir(dir string) (map[string]CatalogEntry, error) {
	out := map[string]CatalogEntry{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMappingFile(p) {
			return nil
		}
		// #nosec G304 -- mapping dir comes from trusted config.
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(b)
		rel = filepath.ToSlash(rel)
		out[rel] = CatalogEntry{
			Path:        rel,
			Fingerprint: hex.EncodeToString(sum[:8]),
			Size:        int64(len(b)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validateEntries(ctx context.Context, dir string, entries map[string]CatalogEntry) ([]Issue, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	store, err := OpenFS(dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var issues []Issue
	for _, p := range paths {
		if _, err := mapping.Resolve(ctx, store, p, mapping.NewCache()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			issues = append(issues, Issue{Path: p, Kind: maperr.Kind(err), Err: err})
		}
	}
	return issues, nil
}

func diffEntries(before, after map[string]CatalogEntry) []string {
	changed := make([]string, 0)
	for p, prev := range before {
		next, ok := after[p]
		if !ok || next.Fingerprint != prev.Fingerprint {
			changed = append(changed, p)
		}
	}
	for p := range after {
		if _, ok := before[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}
