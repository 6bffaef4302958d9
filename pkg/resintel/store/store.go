// Package store records discovery runs and refinements so that past results
// can be listed after the process-local analysis cache is gone.
package store

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store is the run history.
type Store interface {
	Close() error

	// SaveRun inserts or replaces a run. An empty ID is assigned.
	SaveRun(ctx context.Context, r *Run) error
	// GetRun returns the run or an error wrapping ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns runs newest first. An empty corpusID lists every corpus.
	ListRuns(ctx context.Context, corpusID string, limit int) ([]Run, error)

	// SaveRefinement stores a refinement of an existing run. An empty ID is assigned.
	SaveRefinement(ctx context.Context, r *Refinement) error
	// ListRefinements returns the refinements of a run, oldest first.
	ListRefinements(ctx context.Context, runID string) ([]Refinement, error)

	// DeleteCorpus drops every run of a corpus and their refinements.
	DeleteCorpus(ctx context.Context, corpusID string) error
}

// Run is one granularity sweep over a corpus.
type Run struct {
	ID       string
	CorpusID string
	Docs     int
	RangeLo  int
	RangeHi  int

	Found          bool
	MinClusterSize int
	Coherence      float64
	Curve          []CurvePoint
	Viable         []int

	CreatedAt time.Time
}

// CurvePoint is one defined candidate of a run.
type CurvePoint struct {
	MinClusterSize int     `json:"min_cluster_size"`
	Coherence      float64 `json:"coherence"`
	Best           bool    `json:"best,omitempty"`
}

// Refinement is one labeled refit of a run at a chosen granularity.
type Refinement struct {
	ID             string
	RunID          string
	CorpusID       string
	MinClusterSize int
	Topics         []Topic
	CreatedAt      time.Time
}

// Topic is a labeled topic of a refinement.
type Topic struct {
	ID    int      `json:"id"`
	Label string   `json:"label"`
	Count int      `json:"count"`
	Terms []string `json:"terms"`
}

// NewID returns a sortable unique id.
func NewID() string {
	return ulid.Make().String()
}

// Prepare fills the id and creation time of a run when unset.
func (r *Run) Prepare() {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

// Prepare fills the id and creation time of a refinement when unset.
func (r *Refinement) Prepare() {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}
