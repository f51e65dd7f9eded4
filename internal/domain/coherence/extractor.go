package coherence

import (
	"github.com/turtacn/DiscourseLens/internal/domain/document"
)

// Extractor derives lemma lists from normalized tokens.
type Extractor struct {
	stop *document.StopWords
}

// NewExtractor uses stop to drop function words.  A nil list keeps every
// topic-eligible token.
func NewExtractor(stop *document.StopWords) *Extractor {
	return &Extractor{stop: stop}
}

// Sentence returns the first-occurrence lemma list of one sentence: nouns
// and pronouns that are not stop words.
func (x *Extractor) Sentence(s *document.Sentence) document.LemmaList {
	if s.Image {
		return nil
	}
	var out document.LemmaList
	for _, t := range s.Tokens {
		if !t.POS.IsTopicEligible() || t.Lemma == "" {
			continue
		}
		if x.stop.IsStop(t.Lemma) {
			continue
		}
		out.Append(document.Lemma{Text: t.Lemma, POS: t.POS, Position: t.Position})
	}
	return out
}

// Element fills the lemma fields of e and its sentences.  AccumLemmas of a
// sentence is the union of its own lemmas and every earlier non-image
// sentence of the element.
func (x *Extractor) Element(e *document.Element) {
	var accum document.LemmaList
	e.Lemmas = nil
	for _, s := range e.Sentences {
		s.Lemmas = x.Sentence(s)
		if s.Image {
			s.AccumLemmas = nil
			continue
		}
		accum.Union(s.Lemmas)
		s.AccumLemmas = accum.Clone()
	}
	e.Lemmas = accum.Clone()
	e.Pool = e.Lemmas.Filter(func(l document.Lemma) bool { return l.POS.IsNominal() })
}

// Document extracts every element of d.
func (x *Extractor) Document(d *document.Document) {
	for _, e := range d.Elements {
		x.Element(e)
	}
}
