package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// jsonlRecord accepts the abstract under "abstract", "summary" or "text".
type jsonlRecord struct {
	Title    *string `json:"title"`
	Abstract *string `json:"abstract"`
	Summary  *string `json:"summary"`
	Text     *string `json:"text"`
}

func (r jsonlRecord) abstract() *string {
	switch {
	case r.Abstract != nil:
		return r.Abstract
	case r.Summary != nil:
		return r.Summary
	default:
		return r.Text
	}
}

// LoadJSONLFile reads a JSONL export and normalizes it into a corpus named after the file.
func LoadJSONLFile(path string) (*Corpus, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return LoadJSONL(filepath.Base(path), f)
}

// LoadJSONL reads one JSON object per line. Blank lines are ignored and lines
// that do not decode are counted in Stats.Malformed.
func LoadJSONL(id string, r io.Reader) (*Corpus, Stats, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		raw                   []Document
		hasTitle, hasAbstract bool
		malformed             int
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			malformed++
			continue
		}
		var d Document
		if rec.Title != nil {
			hasTitle = true
			d.Title = *rec.Title
		}
		if abs := rec.abstract(); abs != nil {
			hasAbstract = true
			d.Abstract = *abs
		}
		raw = append(raw, d)
	}
	if err := sc.Err(); err != nil {
		return nil, Stats{}, eris.Wrapf(err, "read %s", id)
	}
	if len(raw) > 0 && !hasTitle && !hasAbstract {
		return nil, Stats{Malformed: malformed}, fmt.Errorf("%w: %s has no title or abstract field",
			internalerr.ErrInvalidInput, id)
	}

	corpus, stats, err := Normalize(id, raw, hasTitle, hasAbstract)
	stats.Malformed = malformed
	return corpus, stats, err
}
