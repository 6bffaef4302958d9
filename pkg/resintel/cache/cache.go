// Package cache holds the expensive per-corpus results of a discovery run so that
// refinement can reuse them.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/search"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
)

// Entry is everything a refinement needs. It is never modified after Put.
type Entry struct {
	CorpusID   string
	Handle     string
	Docs       []string
	Tokens     [][]string
	Embeddings *mat.Dense
	Embedder   embed.Embedder
	Artifacts  *topicmodel.Artifacts

	Curve  []search.CurvePoint
	Best   search.Selection
	Viable []int

	CreatedAt time.Time
}

// NewHandle returns a fresh opaque entry handle.
func NewHandle() string {
	return ulid.Make().String()
}

// Representation returns a new representation model bound to the entry's embedder.
func (e *Entry) Representation() topicmodel.Representation {
	return topicmodel.NewKeyBERTInspired(e.Embedder)
}

// Cache maps corpus ids to entries. It is process-local.
//
// Every id has a generation that Delete advances. A computation started at one
// generation is never stored once the id has moved on, so an entry removed
// while it was being built stays removed.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	gens    map[string]uint64
	group   singleflight.Group
	metrics *metrics.Metrics
}

// New returns an empty cache.
func New(m *metrics.Metrics) *Cache {
	return &Cache{entries: make(map[string]*Entry), gens: make(map[string]uint64), metrics: m}
}

// Generation returns the current generation of id.
func (c *Cache) Generation(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[id]
}

// Get returns the entry for id or ErrNotFound.
func (c *Cache) Get(id string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: no analysis cached for %q", internalerr.ErrNotFound, id)
	}
	return e, nil
}

// Put stores e, replacing any previous entry for the same corpus.
func (c *Cache) Put(e *Entry) {
	if e.Handle == "" {
		e.Handle = NewHandle()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c.mu.Lock()
	c.entries[e.CorpusID] = e
	n := len(c.entries)
	c.mu.Unlock()
	c.metrics.CacheSize(n)
}

// Delete drops the entry for id, invalidates computations still running for
// it and reports whether an entry existed.
func (c *Cache) Delete(id string) bool {
	c.mu.Lock()
	_, ok := c.entries[id]
	delete(c.entries, id)
	c.gens[id]++
	n := len(c.entries)
	c.mu.Unlock()
	c.metrics.CacheSize(n)
	return ok
}

// Len returns the number of cached corpora.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Compute runs build once per corpus id and generation at a time; concurrent
// callers wait for and share the first caller's result. The result is stored
// only if id is still at gen, otherwise Compute fails with ErrNotFound. shared
// reports whether the result came from another caller.
func (c *Cache) Compute(ctx context.Context, id string, gen uint64, build func(context.Context) (*Entry, error)) (entry *Entry, shared bool, err error) {
	key := fmt.Sprintf("%s#%d", id, gen)
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		e, err := build(ctx)
		if err != nil {
			return nil, err
		}
		e.CorpusID = id
		if !c.putAt(e, gen) {
			return nil, fmt.Errorf("%w: %q was removed during the computation", internalerr.ErrNotFound, id)
		}
		return e, nil
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*Entry), shared, nil
}

func (c *Cache) putAt(e *Entry, gen uint64) bool {
	if e.Handle == "" {
		e.Handle = NewHandle()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c.mu.Lock()
	if c.gens[e.CorpusID] != gen {
		c.mu.Unlock()
		return false
	}
	c.entries[e.CorpusID] = e
	n := len(c.entries)
	c.mu.Unlock()
	c.metrics.CacheSize(n)
	return true
}
