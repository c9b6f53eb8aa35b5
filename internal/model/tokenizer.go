package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultStopWords are dropped unless Options.StopWords says otherwise.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "can", "do",
	"each", "for", "from", "had", "has", "have", "he", "if", "in", "is",
	"it", "its", "no", "not", "of", "on", "or", "so", "that", "the",
	"their", "they", "this", "to", "was", "were", "what", "when", "where",
	"which", "who", "will", "with",
}

// Token is one normalised word. Position counts kept tokens only.
type Token struct {
	Term     string
	Position int
}

// Tokenizer splits field values into words before embedding.
type Tokenizer struct {
	stop   map[string]struct{}
	minLen int
}

// NewTokenizer drops the given stop words and any word shorter than minLen
// runes. A nil stopWords selects DefaultStopWords; an empty non-nil slice
// keeps every word.
func NewTokenizer(stopWords []string, minLen int) *Tokenizer {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stop: stop, minLen: minLen}
}

// Tokenize lower-cases text and splits it on anything that is not a letter
// or digit. Words are not stemmed; the embedding already places
// inflections close together.
func (t *Tokenizer) Tokenize(text string) []Token {
	var tokens []Token
	for _, word := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		if _, stop := t.stop[word]; stop {
			continue
		}
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		tokens = append(tokens, Token{Term: word, Position: len(tokens)})
	}
	return tokens
}

var defaultTokenizer = NewTokenizer(nil, 0)

// Tokenize uses the default stop words.
func Tokenize(text string) []Token { return defaultTokenizer.Tokenize(text) }

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
