package topicmodel

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// blobs places 8 points on a small circle around each center, followed by extra points.
func blobs(centers [][2]float64, extra ...[2]float64) *mat.Dense {
	var data []float64
	for _, c := range centers {
		for k := 0; k < 8; k++ {
			a := float64(k) * math.Pi / 4
			data = append(data, c[0]+0.1*math.Cos(a), c[1]+0.1*math.Sin(a))
		}
	}
	for _, p := range extra {
		data = append(data, p[0], p[1])
	}
	return mat.NewDense(len(data)/2, 2, data)
}

func TestHDBSCANSeparatesBlobs(t *testing.T) {
	X := blobs([][2]float64{{0, 0}, {10, 0}, {0, 10}}, [2]float64{50, 50})

	labels, err := NewHDBSCAN(5).Fit(context.Background(), X)
	require.NoError(t, err)
	require.Len(t, labels, 25)

	seen := map[int]bool{}
	for b := 0; b < 3; b++ {
		first := labels[b*8]
		assert.NotEqual(t, Noise, first)
		for i := b*8 + 1; i < (b+1)*8; i++ {
			assert.Equal(t, first, labels[i], "point %d", i)
		}
		seen[first] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, Noise, labels[24])
}

func TestHDBSCANTooFewPoints(t *testing.T) {
	X := blobs([][2]float64{{0, 0}})
	labels, err := NewHDBSCAN(10).Fit(context.Background(), X)
	require.NoError(t, err)
	for _, l := range labels {
		assert.Equal(t, Noise, l)
	}
}

func TestHDBSCANSingleBlobIsNoise(t *testing.T) {
	// the root is never selected, so one dense group yields no cluster
	X := blobs([][2]float64{{0, 0}})
	labels, err := NewHDBSCAN(5).Fit(context.Background(), X)
	require.NoError(t, err)
	for _, l := range labels {
		assert.Equal(t, Noise, l)
	}
}

func TestHDBSCANCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHDBSCAN(5).Fit(ctx, blobs([][2]float64{{0, 0}, {5, 5}}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMembershipRowsSumToOne(t *testing.T) {
	X := blobs([][2]float64{{0, 0}, {10, 0}}, [2]float64{5, 0})
	labels := make([]int, 17)
	for i := 8; i < 16; i++ {
		labels[i] = 1
	}
	labels[16] = Noise

	m := NewHDBSCAN(5).Membership(X, labels)
	r, c := m.Dims()
	assert.Equal(t, 17, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		assert.InDelta(t, 1.0, row[0]+row[1], 1e-9)
	}
	assert.Greater(t, m.At(0, 0), m.At(0, 1))
	assert.InDelta(t, 0.5, m.At(16, 0), 1e-9, "midpoint is equidistant")
}

func TestQuickselect(t *testing.T) {
	xs := []float64{5, 1, 4, 1, 3, 9, 2}
	assert.Equal(t, 1.0, quickselect(append([]float64(nil), xs...), 0))
	assert.Equal(t, 1.0, quickselect(append([]float64(nil), xs...), 1))
	assert.Equal(t, 3.0, quickselect(append([]float64(nil), xs...), 3))
	assert.Equal(t, 9.0, quickselect(append([]float64(nil), xs...), 6))
}
