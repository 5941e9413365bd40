package textprocessor

import (
	"fmt"

	"github.com/kljensen/snowball"

	"github.com/deidaraiorek/siteindex/internal/tokenizer"
)

// Normalizer maps a lowercased token to its lemma. ok is false when the
// token cannot be lemmatized; such tokens are dropped.
type Normalizer interface {
	Normalize(token string) (lemma string, ok bool)
}

type NormalizerFunc func(token string) (string, bool)

func (f NormalizerFunc) Normalize(token string) (string, bool) {
	return f(token)
}

// Exact uses the token itself as the lemma.
var Exact = NormalizerFunc(func(token string) (string, bool) {
	return token, token != ""
})

// Stemmer reduces words to a snowball stem of one language.
type Stemmer struct {
	language string
}

func NewStemmer(language string) (*Stemmer, error) {
	if _, err := snowball.Stem("test", language, true); err != nil {
		return nil, fmt.Errorf("unsupported stemmer language %q: %w", language, err)
	}
	return &Stemmer{language: language}, nil
}

func (s *Stemmer) Stem(word string) string {
	stemmed, err := snowball.Stem(word, s.language, true)
	if err != nil {
		return word
	}
	return stemmed
}

func (s *Stemmer) Normalize(token string) (string, bool) {
	stemmed, err := snowball.Stem(token, s.language, true)
	if err != nil || stemmed == "" {
		return "", false
	}
	return stemmed, true
}

// ScriptStemmer picks the Russian or English stemmer by the token's script.
// Tokens mixing scripts, or written in any other script, are unresolved.
type ScriptStemmer struct {
	russian *Stemmer
	english *Stemmer
}

func NewScriptStemmer() *ScriptStemmer {
	return &ScriptStemmer{
		russian: &Stemmer{language: "russian"},
		english: &Stemmer{language: "english"},
	}
}

func (s *ScriptStemmer) Normalize(token string) (string, bool) {
	switch tokenizer.Script(token) {
	case "cyrillic":
		return s.russian.Normalize(token)
	case "latin":
		return s.english.Normalize(token)
	default:
		return "", false
	}
}

// NormalizerByName resolves a configured normalizer: "exact", "script",
// or a snowball language name such as "russian".
func NormalizerByName(name string) (Normalizer, error) {
	switch name {
	case "", "script":
		return NewScriptStemmer(), nil
	case "exact":
		return Exact, nil
	default:
		return NewStemmer(name)
	}
}
