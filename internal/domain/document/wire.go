package document

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// ParsedDocument is the JSON form delivered by the external linguistic
// pipeline.  Tokens follow spaCy conventions: pos is the universal coarse
// tag, tag the fine-grained tag and dep the dependency label, with the main
// verb labelled "ROOT".
type ParsedDocument struct {
	ID       string        `json:"id"`
	Language string        `json:"language"`
	Elements []WireElement `json:"elements"`
}

// WireElement is one structural element.  Headings may carry only Text.
type WireElement struct {
	Type      ElementType    `json:"type"`
	ID        string         `json:"id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Sentences []WireSentence `json:"sentences,omitempty"`
}

type WireSentence struct {
	Text   string      `json:"text"`
	Tokens []WireToken `json:"tokens"`
}

type WireToken struct {
	Text  string `json:"text"`
	POS   string `json:"pos"`
	Tag   string `json:"tag"`
	Dep   string `json:"dep"`
	Lemma string `json:"lemma"`
	Index int    `json:"index"`
}

// Decode reads a ParsedDocument from r and validates it.
func Decode(r io.Reader) (*ParsedDocument, error) {
	var pd ParsedDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&pd); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidDocument, "failed to decode parsed document")
	}
	if err := pd.Validate(); err != nil {
		return nil, err
	}
	return &pd, nil
}

// Validate checks element types.  An empty document is valid.
func (pd *ParsedDocument) Validate() error {
	if pd == nil {
		return errors.New(errors.ErrCodeInvalidDocument, "document is nil")
	}
	for i, e := range pd.Elements {
		if !e.Type.IsValid() {
			return errors.New(errors.ErrCodeInvalidDocument, "unknown element type").
				WithDetail(fmt.Sprintf("element %d has type %q", i, e.Type))
		}
	}
	return nil
}

// TokenNormalizer turns pipeline tokens into annotated tokens.  start is the
// document-wide position of the first token; implementations number tokens
// consecutively from it.
type TokenNormalizer interface {
	NormalizeSentence(tokens []WireToken, start int) []Token
	NormalizeHeading(tokens []WireToken, start int) []Token
	IsImage(text string) bool
}

// Build converts a parsed document into a Document and normalizes it with
// n.  Lemma fields are left empty for the extractor.
func Build(pd *ParsedDocument, n TokenNormalizer) (*Document, error) {
	if err := pd.Validate(); err != nil {
		return nil, err
	}
	doc := New(pd.ID, pd.Language)
	for i, we := range pd.Elements {
		e := &Element{Type: we.Type, ID: we.ID, Text: we.Text}
		if e.ID == "" {
			e.ID = fmt.Sprintf("e%d", i)
		}

		wireSentences := we.Sentences
		if len(wireSentences) == 0 && strings.TrimSpace(we.Text) != "" {
			wireSentences = []WireSentence{{Text: we.Text}}
		}
		for _, ws := range wireSentences {
			e.Sentences = append(e.Sentences, &Sentence{Text: ws.Text, Source: ws.Tokens})
		}
		doc.AppendElement(e)
	}
	doc.Renormalize(n)
	return doc, nil
}

// Renormalize rebuilds every sentence's annotated tokens from its Source
// and renumbers word positions from zero.  Derived lemma fields are cleared.
func (d *Document) Renormalize(n TokenNormalizer) {
	d.words = 0
	for _, e := range d.Elements {
		e.Lemmas, e.Pool, e.GivenLemmas, e.NewLemmas = nil, nil, nil, nil
		for _, s := range e.Sentences {
			s.Lemmas, s.AccumLemmas, s.GivenLemmas, s.NewLemmas = nil, nil, nil, nil
			s.Image = e.Type == ElementImage || n.IsImage(s.Text)
			if s.Image {
				s.Tokens = nil
				continue
			}
			start := d.words
			if e.Type == ElementHeading {
				s.Tokens = n.NormalizeHeading(s.Source, start)
			} else {
				s.Tokens = n.NormalizeSentence(s.Source, start)
			}
			d.NextPosition(len(s.Tokens))
		}
	}
}
