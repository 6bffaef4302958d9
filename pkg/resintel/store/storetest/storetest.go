// Package storetest holds the behavior every store.Store implementation must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/store"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("RunRoundTrip", func(t *testing.T) { testRunRoundTrip(t, open(t)) })
	t.Run("ListRuns", func(t *testing.T) { testListRuns(t, open(t)) })
	t.Run("Refinements", func(t *testing.T) { testRefinements(t, open(t)) })
	t.Run("DeleteCorpus", func(t *testing.T) { testDeleteCorpus(t, open(t)) })
}

func sampleRun(corpus string) *store.Run {
	return &store.Run{
		CorpusID:       corpus,
		Docs:           120,
		RangeLo:        4,
		RangeHi:        18,
		Found:          true,
		MinClusterSize: 6,
		Coherence:      0.42,
		Curve: []store.CurvePoint{
			{MinClusterSize: 5, Coherence: 0.3},
			{MinClusterSize: 6, Coherence: 0.42, Best: true},
		},
		Viable: []int{5, 6},
	}
}

func testRunRoundTrip(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	run := sampleRun("papers.csv")
	require.NoError(t, st.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID)
	require.False(t, run.CreatedAt.IsZero())

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.CorpusID, got.CorpusID)
	assert.Equal(t, run.Docs, got.Docs)
	assert.Equal(t, run.Found, got.Found)
	assert.Equal(t, run.MinClusterSize, got.MinClusterSize)
	assert.InDelta(t, run.Coherence, got.Coherence, 1e-12)
	assert.Equal(t, run.Curve, got.Curve)
	assert.Equal(t, run.Viable, got.Viable)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Millisecond)

	run.Found = false
	require.NoError(t, st.SaveRun(ctx, run))
	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.False(t, got.Found)

	_, err = st.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
}

func testListRuns(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	var ids []string
	for _, corpus := range []string{"a.csv", "b.csv", "a.csv"} {
		r := sampleRun(corpus)
		require.NoError(t, st.SaveRun(ctx, r))
		ids = append(ids, r.ID)
	}

	all, err := st.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)

	onlyA, err := st.ListRuns(ctx, "a.csv", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, []string{ids[2], ids[0]}, []string{onlyA[0].ID, onlyA[1].ID})

	limited, err := st.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testRefinements(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	run := sampleRun("papers.csv")
	require.NoError(t, st.SaveRun(ctx, run))

	for _, m := range []int{5, 6} {
		ref := &store.Refinement{
			RunID:          run.ID,
			CorpusID:       run.CorpusID,
			MinClusterSize: m,
			Topics: []store.Topic{
				{ID: 0, Label: "Data Management", Count: 40, Terms: []string{"database", "query"}},
				{ID: 1, Label: "Topic 1", Count: 12, Terms: []string{"gene"}},
			},
		}
		require.NoError(t, st.SaveRefinement(ctx, ref))
		require.NotEmpty(t, ref.ID)
	}

	refs, err := st.ListRefinements(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 5, refs[0].MinClusterSize)
	assert.Equal(t, 6, refs[1].MinClusterSize)
	assert.Equal(t, "Data Management", refs[0].Topics[0].Label)
	assert.Equal(t, []string{"database", "query"}, refs[0].Topics[0].Terms)

	err = st.SaveRefinement(ctx, &store.Refinement{RunID: "missing", MinClusterSize: 3})
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))

	none, err := st.ListRefinements(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDeleteCorpus(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()

	keep := sampleRun("keep.csv")
	drop := sampleRun("drop.csv")
	require.NoError(t, st.SaveRun(ctx, keep))
	require.NoError(t, st.SaveRun(ctx, drop))
	require.NoError(t, st.SaveRefinement(ctx, &store.Refinement{RunID: drop.ID, CorpusID: "drop.csv", MinClusterSize: 5}))

	require.NoError(t, st.DeleteCorpus(ctx, "drop.csv"))

	_, err := st.GetRun(ctx, drop.ID)
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))
	refs, err := st.ListRefinements(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = st.GetRun(ctx, keep.ID)
	assert.NoError(t, err)
}
