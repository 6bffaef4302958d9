package pmi

import "sort"

// Dictionary is a boolean document index: for each token, the sorted ids of the
// documents that contain it at least once.
type Dictionary struct {
	postings map[string][]int32
	docs     int64
}

// NewDictionary indexes tokenized documents.
func NewDictionary(docs [][]string) *Dictionary {
	d := &Dictionary{postings: make(map[string][]int32), docs: int64(len(docs))}
	for i, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			d.postings[tok] = append(d.postings[tok], int32(i))
		}
	}
	return d
}

// TotalDocs returns the number of indexed documents.
func (d *Dictionary) TotalDocs() int64 {
	if d == nil {
		return 0
	}
	return d.docs
}

// Contains reports whether tok appears in any document.
func (d *Dictionary) Contains(tok string) bool {
	if d == nil {
		return false
	}
	_, ok := d.postings[tok]
	return ok
}

// DocFreq returns how many documents contain tok.
func (d *Dictionary) DocFreq(tok string) int64 {
	if d == nil {
		return 0
	}
	return int64(len(d.postings[tok]))
}

// PairCount returns how many documents contain both a and b.
func (d *Dictionary) PairCount(a, b string) int64 {
	if d == nil {
		return 0
	}
	pa, pb := d.postings[a], d.postings[b]
	if len(pa) > len(pb) {
		pa, pb = pb, pa
	}
	var n int64
	i, j := 0, 0
	for i < len(pa) && j < len(pb) {
		switch {
		case pa[i] == pb[j]:
			n++
			i++
			j++
		case pa[i] < pb[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// Vocabulary returns every indexed token in lexical order.
func (d *Dictionary) Vocabulary() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.postings))
	for tok := range d.postings {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
