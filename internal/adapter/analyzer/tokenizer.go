package analyzer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split modes.
const (
	SplitWhitespace = "whitespace"
	SplitWords      = "words"
)

// Tokenizer lowercases text and splits it into tokens.
//
// In whitespace mode tokens are the whitespace-separated fields of the text, so
// punctuation stays attached ("교수님," and "교수님" differ). Words mode splits on
// anything that is not a letter, digit or underscore.
type Tokenizer struct {
	mode   string
	minLen int
}

// NewTokenizer creates a Tokenizer. minLen is counted in runes; values below 1 keep every token.
func NewTokenizer(mode string, minLen int) (*Tokenizer, error) {
	switch mode {
	case "", SplitWhitespace:
		mode = SplitWhitespace
	case SplitWords:
	default:
		return nil, fmt.Errorf("unknown tokenizer mode %q", mode)
	}
	if minLen < 1 {
		minLen = 1
	}
	return &Tokenizer{mode: mode, minLen: minLen}, nil
}

// NewWhitespaceTokenizer returns the default tokenizer: lowercase, split on whitespace.
func NewWhitespaceTokenizer() *Tokenizer {
	return &Tokenizer{mode: SplitWhitespace, minLen: 1}
}

// Tokenize splits text into tokens. Empty or blank input yields an empty slice.
func (t *Tokenizer) Tokenize(text string) []string {
	var words []string
	if t.mode == SplitWords {
		words = splitWords(text)
	} else {
		words = strings.Fields(text)
	}

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		tokens = append(tokens, word)
	}
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

// splitWords splits text into words using unicode letter and digit boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
