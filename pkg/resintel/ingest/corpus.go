package ingest

import (
	"fmt"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// Document is one research record.
type Document struct {
	Title    string
	Abstract string
}

// Text is the string the analyses consume.
func (d Document) Text() string {
	switch {
	case d.Title == "":
		return d.Abstract
	case d.Abstract == "":
		return d.Title
	default:
		return d.Title + " " + d.Abstract
	}
}

// Corpus is an ordered, immutable collection of documents keyed by the file it came from.
type Corpus struct {
	ID   string
	Docs []Document
}

// NewCorpus validates the minimum size and returns the corpus.
func NewCorpus(id string, docs []Document) (*Corpus, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty corpus id", internalerr.ErrInvalidInput)
	}
	if len(docs) < internalerr.MinDocuments {
		return nil, fmt.Errorf("%w: corpus %q has %d documents, need at least %d",
			internalerr.ErrInsufficientData, id, len(docs), internalerr.MinDocuments)
	}
	return &Corpus{ID: id, Docs: docs}, nil
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	return len(c.Docs)
}

// Texts returns Document.Text for every document in order.
func (c *Corpus) Texts() []string {
	out := make([]string, len(c.Docs))
	for i, d := range c.Docs {
		out[i] = d.Text()
	}
	return out
}
