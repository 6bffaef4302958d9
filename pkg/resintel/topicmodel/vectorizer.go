package topicmodel

import (
	"github.com/cognicore/resintel/pkg/resintel/ingest"
)

// CountVectorizer counts unigrams, optionally bigrams, of tokenized documents.
type CountVectorizer struct {
	NgramMax  int      `yaml:"ngram_max"`
	MinDocs   int      `yaml:"min_df"`
	Stopwords []string `yaml:"stopwords"`

	tokenizer *ingest.Tokenizer
}

// NewCountVectorizer returns a unigram vectorizer over the default English stopwords.
func NewCountVectorizer() *CountVectorizer {
	v := &CountVectorizer{NgramMax: 1, MinDocs: 1}
	v.Prepare()
	return v
}

var defaultTokenizer = ingest.NewTokenizer(nil)

// Prepare applies defaults and builds the tokenizer. It must run before the
// vectorizer is shared between goroutines.
func (v *CountVectorizer) Prepare() {
	if v.NgramMax <= 0 {
		v.NgramMax = 1
	}
	if v.MinDocs <= 0 {
		v.MinDocs = 1
	}
	t := ingest.NewTokenizer(nil)
	for _, w := range v.Stopwords {
		t.AddStopword(w)
	}
	v.tokenizer = t
}

// Analyze returns the unigrams of text followed by its space-joined bigrams when NgramMax >= 2.
func (v *CountVectorizer) Analyze(text string) []string {
	t := v.tokenizer
	if t == nil {
		t = defaultTokenizer
	}
	tokens := t.Tokenize(text)
	if v.NgramMax < 2 || len(tokens) < 2 {
		return tokens
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

func (v *CountVectorizer) MinDF() int {
	if v.MinDocs <= 0 {
		return 1
	}
	return v.MinDocs
}
