package ingest

import (
	"strings"
	"unicode"
)

// MinTokenLength is the shortest token kept; shorter words carry little topic signal.
const MinTokenLength = 3

// Tokenizer handles text tokenization and normalization
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a new tokenizer with the given stopword list.
// A nil list selects DefaultStopwords.
func NewTokenizer(stopwords []string) *Tokenizer {
	if stopwords == nil {
		stopwords = DefaultStopwords
	}
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// Tokenize lower-cases text, deletes every rune that is neither an ASCII letter
// nor whitespace, and returns the remaining words that are not stopwords and are
// at least MinTokenLength long.
//
// Deletion joins the surrounding letters: "state-of-the-art" becomes "stateoftheart".
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := t.processToken(current.String()); word != "" {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			current.WriteRune(unicode.ToLower(r))
		}
	}
	flush()

	return tokens
}

// TokenizeAll tokenizes every text, preserving order.
func (t *Tokenizer) TokenizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, text := range texts {
		out[i] = t.Tokenize(text)
	}
	return out
}

func (t *Tokenizer) processToken(word string) string {
	if len(word) < MinTokenLength {
		return ""
	}
	if t.isStopword(word) {
		return ""
	}
	return word
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// IsStopword reports whether word (case-insensitive) is filtered.
func (t *Tokenizer) IsStopword(word string) bool {
	return t.isStopword(strings.ToLower(word))
}

// AddStopword adds a word to the stopword list
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// RemoveStopword removes a word from the stopword list
func (t *Tokenizer) RemoveStopword(word string) {
	delete(t.stopwords, strings.ToLower(word))
}
