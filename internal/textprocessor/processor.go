package textprocessor

import (
	"strings"

	"github.com/deidaraiorek/siteindex/internal/tokenizer"
)

// Lemmatizer turns text into lemma occurrence counts. It keeps no state
// between calls and is safe for concurrent use.
type Lemmatizer struct {
	tokenizer  *tokenizer.Tokenizer
	normalizer Normalizer
	stopWords  map[string]bool
}

func NewLemmatizer(normalizer Normalizer, extraStopWords ...string) *Lemmatizer {
	if normalizer == nil {
		normalizer = NewScriptStemmer()
	}

	stopWords := defaultStopWords()
	for _, word := range extraStopWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			stopWords[word] = true
		}
	}

	return &Lemmatizer{
		tokenizer:  tokenizer.NewTokenizer(),
		normalizer: normalizer,
		stopWords:  stopWords,
	}
}

// Lemmas returns the lemma of every surviving token, in text order.
func (l *Lemmatizer) Lemmas(text string) []string {
	tokens := l.tokenizer.Tokenize(text)

	lemmas := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if l.stopWords[token] {
			continue
		}

		lemma, ok := l.normalizer.Normalize(token)
		if !ok || lemma == "" || l.stopWords[lemma] {
			continue
		}
		lemmas = append(lemmas, lemma)
	}
	return lemmas
}

func (l *Lemmatizer) Lemmatize(text string) map[string]int {
	counts := make(map[string]int)
	for _, lemma := range l.Lemmas(text) {
		counts[lemma]++
	}
	return counts
}
