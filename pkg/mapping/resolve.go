package mapping

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/r9s-ai/x12-mapper/pkg/maperr"
)

// Store fetches raw mapping documents by logical path. Missing paths must
// produce an error matching maperr.ErrNotFound.
type Store interface {
	FetchJSON(ctx context.Context, path string) (*Document, error)
}

// Cache holds resolved documents for one request. It is not safe for
// concurrent use and must not be shared across requests.
type Cache struct {
	docs   map[string]*Document
	active []string
}

func NewCache() *Cache {
	return &Cache{docs: map[string]*Document{}}
}

// Get returns the resolved document cached for p.
func (c *Cache) Get(p string) (*Document, bool) {
	if c == nil {
		return nil, false
	}
	doc, ok := c.docs[p]
	return doc, ok
}

// Len reports the number of resolved paths.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.docs)
}

// Resolve loads the document at p, follows its extends chain and returns
// the merged result. Every path resolved along the way is cached, so a
// second call for the same path returns the identical document without
// touching the store. A chain that re-enters a path still being resolved
// fails with *maperr.CycleError.
func Resolve(ctx context.Context, store Store, p string, cache *Cache) (*Document, error) {
	if cache == nil {
		cache = NewCache()
	}
	if cache.docs == nil {
		cache.docs = map[string]*Document{}
	}
	if doc, ok := cache.docs[p]; ok {
		return doc, nil
	}
	for i, inflight := range cache.active {
		if inflight == p {
			chain := append(append([]string(nil), cache.active[i:]...), p)
			return nil, &maperr.CycleError{Chain: chain}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := store.FetchJSON(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("fetch mapping %q: %w", p, err)
	}
	if raw == nil {
		return nil, &maperr.MappingError{Path: p, Cause: errors.New("store returned no document")}
	}

	doc := raw
	if raw.Extends != "" {
		cache.active = append(cache.active, p)
		base, err := Resolve(ctx, store, ResolveExtendsPath(p, raw.Extends), cache)
		cache.active = cache.active[:len(cache.active)-1]
		if err != nil {
			return nil, err
		}
		doc = Merge(base, raw)
	}
	cache.docs[p] = doc
	return doc, nil
}

// ResolveExtendsPath locates the parent of current. A leading "/" anchors
// extends at the store root; anything else is relative to the directory of
// current.
func ResolveExtendsPath(current, extends string) string {
	if strings.HasPrefix(extends, "/") {
		return strings.TrimLeft(extends, "/")
	}
	return path.Clean(path.Join(path.Dir(current), extends))
}
