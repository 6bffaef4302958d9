package config

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/resintel/pkg/resintel/match"
)

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// LoadTaxonomy loads fields and keywords from a YAML file (a list of
// field/keywords entries) or a CSV file, chosen by extension.
func LoadTaxonomy(path string) ([]match.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var entries []match.Entry
		if err := yaml.NewDecoder(f).Decode(&entries); err != nil {
			return nil, eris.Wrapf(err, "parse taxonomy %s", path)
		}
		return entries, nil
	default:
		return ParseTaxonomyCSV(f)
	}
}

var (
	fieldColumns   = []string{"Topik_Utama", "field", "Field"}
	keywordColumns = []string{"Keywords", "keywords"}
)

// ParseTaxonomyCSV reads a field column and a Keywords column holding a list
// literal such as ['query', "index"]. Rows whose keywords cannot be read keep
// the field with no keywords.
func ParseTaxonomyCSV(r io.Reader) ([]match.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read taxonomy header")
	}
	fieldIdx, kwIdx := column(header, fieldColumns), column(header, keywordColumns)
	if fieldIdx < 0 || kwIdx < 0 {
		return nil, eris.Errorf("taxonomy needs a field and a Keywords column, have %v", header)
	}

	var entries []match.Entry
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read taxonomy row")
		}
		if fieldIdx >= len(rec) {
			continue
		}
		name := strings.TrimSpace(rec[fieldIdx])
		if name == "" {
			continue
		}
		var keywords []string
		if kwIdx < len(rec) {
			keywords = ParseKeywordList(rec[kwIdx])
		}
		entries = append(entries, match.Entry{Field: name, Keywords: keywords})
	}
	return entries, nil
}

func column(header, names []string) int {
	for _, n := range names {
		for i, h := range header {
			if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == n {
				return i
			}
		}
	}
	return -1
}

// ParseKeywordList reads a bracketed list of quoted strings. A leading "[,"
// is tolerated. Malformed input yields nil.
func ParseKeywordList(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[,") {
		s = "[" + s[2:]
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil
	}
	body := s[1 : len(s)-1]

	var out []string
	i := 0
	for {
		for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n') {
			i++
		}
		if i >= len(body) {
			return out
		}
		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil
		}
		var sb strings.Builder
		i++
		closed := false
		for i < len(body) {
			c := body[i]
			if c == '\\' && i+1 < len(body) {
				sb.WriteByte(body[i+1])
				i += 2
				continue
			}
			if c == quote {
				closed = true
				i++
				break
			}
			sb.WriteByte(c)
			i++
		}
		if !closed {
			return nil
		}
		out = append(out, sb.String())
		for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n') {
			i++
		}
		if i >= len(body) {
			return out
		}
		if body[i] != ',' {
			return nil
		}
		i++
	}
}
