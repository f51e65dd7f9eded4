package document

import (
	"sort"
	"strings"
)

// englishStopWords omits the personal pronoun base forms (i, you, he, she,
// it, we, they) so pronoun tracking still sees them.
var englishStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "anyone", "anything", "are", "as", "at", "be", "because", "been", "before",
	"being", "below", "between", "both", "but", "by", "can", "could", "did", "do",
	"does", "doing", "down", "during", "each", "else", "etc", "every", "everyone",
	"everything", "few", "for", "from", "further", "had", "has", "have", "having",
	"here", "how", "if", "in", "into", "is", "just", "kind", "lot", "lots", "more",
	"most", "no", "none", "nor", "not", "nothing", "now", "of", "off", "on", "once",
	"one", "ones", "only", "or", "other", "others", "ought", "out", "over", "own",
	"same", "should", "so", "some", "someone", "something", "sort", "such", "than",
	"that", "the", "then", "there", "these", "thing", "things", "this", "those",
	"through", "to", "too", "under", "until", "up", "very", "was", "way", "were",
	"what", "when", "where", "which", "while", "who", "whom", "why", "will", "with",
	"would",
}

var builtinStopWords = map[string][]string{
	"en": englishStopWords,
}

// StopWords is the per-document stop-word set.  Lookups are case-insensitive.
type StopWords struct {
	words map[string]struct{}
}

// NewStopWords builds a set from words.
func NewStopWords(words []string) *StopWords {
	sw := &StopWords{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		sw.Add(w)
	}
	return sw
}

// StopWordsFor returns a fresh copy of the built-in list for language.
// Unknown languages fall back to English.
func StopWordsFor(language string) *StopWords {
	words, ok := builtinStopWords[strings.ToLower(language)]
	if !ok {
		words = englishStopWords
	}
	return NewStopWords(words)
}

func (s *StopWords) IsStop(word string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

func (s *StopWords) Add(word string) {
	s.words[strings.ToLower(word)] = struct{}{}
}

func (s *StopWords) Remove(word string) {
	delete(s.words, strings.ToLower(word))
}

// All returns the words in sorted order.
func (s *StopWords) All() []string {
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
