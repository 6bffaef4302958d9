package match

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"transaction processing in distributed systems", "transaction", 100},
		{"fuzzy wuzzy was a bear", "wuzzy", 100},
		{"wuzzy", "fuzzy wuzzy was a bear", 100},
		{"abc", "abc", 100},
		{"xxabxx", "abc", 200.0 * 2 / 6},
		{"abc", "", 0},
		{"", "", 100},
		{"qqqq", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, PartialRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestPartialRatioEdgeWindows(t *testing.T) {
	// "cde" only overlaps the tail "cd": the suffix window scores 2*2/(3+2).
	assert.InDelta(t, 80.0, PartialRatio("aaaaaaaabcd", "cde"), 1e-9)
}

func TestLCSBitParallelAgreesWithTable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	word := func(n int) []rune {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteByte("abcde"[rng.Intn(5)])
		}
		return []rune(b.String())
	}
	for i := 0; i < 200; i++ {
		needle := word(1 + rng.Intn(64))
		text := word(rng.Intn(100))
		p := compile(string(needle))
		assert.Equal(t, lcsTable(needle, text), p.lcsBits(text), "needle %q text %q", string(needle), string(text))
	}
}

func TestLongNeedleUsesTable(t *testing.T) {
	long := strings.Repeat("ab", 40)
	p := compile(long)
	assert.Nil(t, p.masks)
	assert.Equal(t, 100.0, p.partialRatio([]rune("zz"+long+"zz")))
}
