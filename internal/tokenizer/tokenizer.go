package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Tokenizer struct {
	minLength int
	maxLength int
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		minLength: 1,
		maxLength: 50,
	}
}

// Tokenize splits text on every non-letter rune and lowercases the words.
func (t *Tokenizer) Tokenize(text string) []string {
	words := strings.FieldsFunc(t.normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		n := utf8.RuneCountInString(word)
		if n < t.minLength || n > t.maxLength {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func (t *Tokenizer) normalize(text string) string {
	text = strings.ToLower(text)

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", " ")
	text = strings.ReplaceAll(text, "ё", "е")

	return text
}

// Script reports the writing system of a token: "cyrillic", "latin" or ""
// when the token mixes scripts or uses another one.
func Script(token string) string {
	var script string
	for _, r := range token {
		var s string
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			s = "cyrillic"
		case unicode.Is(unicode.Latin, r):
			s = "latin"
		default:
			return ""
		}
		if script == "" {
			script = s
		} else if script != s {
			return ""
		}
	}
	return script
}
