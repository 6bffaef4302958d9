package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/resintel/pkg/resintel/store"
	"github.com/cognicore/resintel/pkg/resintel/store/storetest"
)

func TestMemstoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestMemstoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := New()
	run := &store.Run{CorpusID: "a.csv", Viable: []int{4, 5}}
	require.NoError(t, st.SaveRun(ctx, run))

	run.Viable[0] = 99
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, got.Viable)

	got.Viable[1] = 42
	again, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, again.Viable)
}
