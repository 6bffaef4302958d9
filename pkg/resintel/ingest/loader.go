package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

var (
	titleColumns    = []string{"Title", "title", "TITLE", "paper_title", "document_title"}
	abstractColumns = []string{"Abstract", "abstract", "ABSTRACT", "abs", "summary"}
)

// Stats summarises what normalization removed.
type Stats struct {
	Original   int     `json:"original_count"`
	Processed  int     `json:"processed_count"`
	Empty      int     `json:"empty_removed"`
	Duplicates int     `json:"duplicates_removed"`
	RemovedPct float64 `json:"removal_percentage"`
	// Malformed counts JSONL lines that were not JSON objects; they are not in Original.
	Malformed int `json:"malformed_skipped,omitempty"`
}

// Removed is the total number of dropped rows.
func (s Stats) Removed() int {
	return s.Original - s.Processed
}

// LoadFile reads a CSV or, for .jsonl and .ndjson files, a JSONL export.
func LoadFile(path string) (*Corpus, Stats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return LoadJSONLFile(path)
	default:
		return LoadCSVFile(path)
	}
}

// LoadCSVFile reads a CSV export and normalizes it into a corpus named after the file.
func LoadCSVFile(path string) (*Corpus, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return LoadCSV(filepath.Base(path), f)
}

// LoadCSV reads a CSV with a header row. Title and abstract columns are found
// under any of their common aliases; at least one of them must exist.
func LoadCSV(id string, r io.Reader) (*Corpus, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Stats{}, fmt.Errorf("%w: %s is empty", internalerr.ErrInsufficientData, id)
		}
		return nil, Stats{}, eris.Wrapf(err, "read header of %s", id)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	titleIdx := findColumn(header, titleColumns)
	abstractIdx := findColumn(header, abstractColumns)
	if titleIdx < 0 && abstractIdx < 0 {
		return nil, Stats{}, fmt.Errorf("%w: %s has no title or abstract column (have %v)",
			internalerr.ErrInvalidInput, id, header)
	}

	var raw []Document
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Stats{}, eris.Wrapf(err, "read %s", id)
		}
		raw = append(raw, Document{
			Title:    field(rec, titleIdx),
			Abstract: field(rec, abstractIdx),
		})
	}

	return Normalize(id, raw, titleIdx >= 0, abstractIdx >= 0)
}

// Normalize cleans every document, drops rows whose present columns are empty,
// then drops exact duplicates keeping the first occurrence. Fewer than
// internalerr.MinDocuments surviving rows is ErrInsufficientData.
func Normalize(id string, raw []Document, hasTitle, hasAbstract bool) (*Corpus, Stats, error) {
	stats := Stats{Original: len(raw)}

	cleaned := make([]Document, 0, len(raw))
	for _, d := range raw {
		d.Title = Clean(d.Title)
		d.Abstract = Clean(d.Abstract)
		if (hasTitle && d.Title == "") || (hasAbstract && d.Abstract == "") {
			stats.Empty++
			continue
		}
		cleaned = append(cleaned, d)
	}

	seen := make(map[Document]struct{}, len(cleaned))
	docs := cleaned[:0]
	for _, d := range cleaned {
		if _, dup := seen[d]; dup {
			stats.Duplicates++
			continue
		}
		seen[d] = struct{}{}
		docs = append(docs, d)
	}

	stats.Processed = len(docs)
	if stats.Original > 0 {
		stats.RemovedPct = float64(stats.Removed()) / float64(stats.Original) * 100
	}

	corpus, err := NewCorpus(id, docs)
	if err != nil {
		return nil, stats, err
	}
	return corpus, stats, nil
}

func findColumn(header, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range header {
			if strings.TrimSpace(h) == alias {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}
