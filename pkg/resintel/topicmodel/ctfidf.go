package topicmodel

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CTFIDF is class-based TF-IDF: each topic is treated as one large document.
//
//	idf(t) = log(avg / f(t) + 1)
//
// where f(t) is the frequency of t over all topics and avg the mean number of
// terms per topic, truncated to an integer. BM25Weighting swaps in
// log(1 + (avg - f + 0.5) / (f + 0.5)); ReduceFrequentWords takes the square
// root of the normalized term frequency.
type CTFIDF struct {
	BM25Weighting       bool `yaml:"bm25_weighting"`
	ReduceFrequentWords bool `yaml:"reduce_frequent_words"`
}

// TermWeights is a fitted c-TF-IDF: one weight row per topic plus the idf used to
// weight new documents.
type TermWeights struct {
	Matrix *mat.Dense
	IDF    []float64
	sqrtTF bool
}

// Fit weights a topics x vocabulary count matrix.
func (c CTFIDF) Fit(classCounts *mat.Dense) *TermWeights {
	k, v := classCounts.Dims()

	freq := make([]float64, v)
	var total float64
	for i := 0; i < k; i++ {
		row := classCounts.RawRowView(i)
		floats.Add(freq, row)
		total += floats.Sum(row)
	}
	avg := math.Trunc(total / float64(k))

	idf := make([]float64, v)
	for t, f := range freq {
		switch {
		case f == 0:
			idf[t] = 0
		case c.BM25Weighting:
			idf[t] = math.Log(1 + (avg-f+0.5)/(f+0.5))
		default:
			idf[t] = math.Log(avg/f + 1)
		}
	}

	w := &TermWeights{IDF: idf, sqrtTF: c.ReduceFrequentWords}
	out := mat.NewDense(k, v, nil)
	for i := 0; i < k; i++ {
		w.weighRow(out.RawRowView(i), classCounts.RawRowView(i))
	}
	w.Matrix = out
	return w
}

func (w *TermWeights) weighRow(dst, counts []float64) {
	sum := floats.Sum(counts)
	if sum == 0 {
		return
	}
	for t, n := range counts {
		if n == 0 {
			continue
		}
		tf := n / sum
		if w.sqrtTF {
			tf = math.Sqrt(tf)
		}
		dst[t] = tf * w.IDF[t]
	}
}

// Doc weights the sparse term counts of a single document the same way.
func (w *TermWeights) Doc(counts map[int]float64) map[int]float64 {
	var sum float64
	for _, n := range counts {
		sum += n
	}
	out := make(map[int]float64, len(counts))
	if sum == 0 {
		return out
	}
	for t, n := range counts {
		tf := n / sum
		if w.sqrtTF {
			tf = math.Sqrt(tf)
		}
		if v := tf * w.IDF[t]; v != 0 {
			out[t] = v
		}
	}
	return out
}

// Row returns the weights of topic row i.
func (w *TermWeights) Row(i int) []float64 {
	return w.Matrix.RawRowView(i)
}
