package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu          sync.RWMutex
	runs        map[string]store.Run
	refinements map[string][]store.Refinement
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:        make(map[string]store.Run),
		refinements: make(map[string][]store.Refinement),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) SaveRun(_ context.Context, r *store.Run) error {
	r.Prepare()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = copyRun(*r)
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("%w: run %q", internalerr.ErrNotFound, id)
	}
	return copyRun(r), nil
}

func (s *Store) ListRuns(_ context.Context, corpusID string, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Run
	for _, r := range s.runs {
		if corpusID == "" || r.CorpusID == corpusID {
			out = append(out, copyRun(r))
		}
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveRefinement(_ context.Context, r *store.Refinement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.RunID]; !ok {
		return fmt.Errorf("%w: run %q", internalerr.ErrNotFound, r.RunID)
	}
	r.Prepare()
	s.refinements[r.RunID] = append(s.refinements[r.RunID], copyRefinement(*r))
	return nil
}

func (s *Store) ListRefinements(_ context.Context, runID string) ([]store.Refinement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.refinements[runID]
	out := make([]store.Refinement, len(refs))
	for i, r := range refs {
		out[i] = copyRefinement(r)
	}
	return out, nil
}

func (s *Store) DeleteCorpus(_ context.Context, corpusID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.runs {
		if r.CorpusID == corpusID {
			delete(s.runs, id)
			delete(s.refinements, id)
		}
	}
	return nil
}

func copyRun(r store.Run) store.Run {
	r.Curve = append([]store.CurvePoint(nil), r.Curve...)
	r.Viable = append([]int(nil), r.Viable...)
	return r
}

func copyRefinement(r store.Refinement) store.Refinement {
	topics := make([]store.Topic, len(r.Topics))
	for i, t := range r.Topics {
		t.Terms = append([]string(nil), t.Terms...)
		topics[i] = t
	}
	r.Topics = topics
	return r
}
