// Package document holds the parsed-document model the coherence engine
// works on: elements, sentences, annotated tokens and lemma lists, plus the
// wire format delivered by the external linguistic pipeline.
package document

import (
	"strings"

	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// ElementType is the structural kind of an Element.
type ElementType string

const (
	ElementParagraph ElementType = "paragraph"
	ElementList      ElementType = "list"
	ElementListItem  ElementType = "list-item"
	ElementHeading   ElementType = "heading"
	ElementTable     ElementType = "table"
	ElementImage     ElementType = "image"
)

func (t ElementType) IsValid() bool {
	switch t {
	case ElementParagraph, ElementList, ElementListItem, ElementHeading, ElementTable, ElementImage:
		return true
	}
	return false
}

// IsParagraphLike reports whether elements of this type take part in the
// paragraph-level given/new pass.
func (t ElementType) IsParagraphLike() bool {
	return t == ElementParagraph || t == ElementList || t == ElementListItem
}

// Token is an annotated token after normalization.
type Token struct {
	Text     string `json:"text"`
	Lemma    string `json:"lemma"`
	POS      POS    `json:"pos"`
	Tag      string `json:"tag,omitempty"`
	Dep      string `json:"dep,omitempty"`
	Left     bool   `json:"is_left"`
	Position int    `json:"position"` // document-wide word position
}

// Key returns the (POS, lemma) identity of the token.
func (t Token) Key() LemmaKey { return LemmaKey{POS: t.POS, Text: t.Lemma} }

// skippableTexts are sentences that consist of a single structural-break
// mark.
var skippableTexts = map[string]struct{}{
	"-": {}, "—": {}, "–": {}, "…": {}, "...": {},
	`"`: {}, "'": {}, "“": {}, "”": {}, "‘": {}, "’": {},
}

// Sentence is one sentence of an Element.  The lemma fields are derived by
// the coherence engine and reset whenever it recomputes.
type Sentence struct {
	Text   string  `json:"text"`
	Image  bool    `json:"is_image"`
	Tokens []Token `json:"tokens"`

	// Source keeps the pipeline tokens so the sentence can be normalized
	// again after a registry change.
	Source []WireToken `json:"-"`

	Lemmas      LemmaList `json:"lemmas"`
	AccumLemmas LemmaList `json:"accum_lemmas"`
	GivenLemmas LemmaList `json:"given_accum_lemmas"`
	NewLemmas   LemmaList `json:"new_accum_lemmas"`
}

// IsSkippable reports whether the whole sentence is a single structural
// break (dash, ellipsis or a lone quote mark).
func (s *Sentence) IsSkippable() bool {
	_, ok := skippableTexts[strings.TrimSpace(s.Text)]
	return ok
}

// Element is a paragraph, list, heading, table or image block.
type Element struct {
	Type      ElementType `json:"type"`
	ID        string      `json:"id"`
	Position  int         `json:"position"`
	Text      string      `json:"text,omitempty"`
	Sentences []*Sentence `json:"sentences"`

	// Lemmas is the first-occurrence union of the sentences' lemma lists.
	Lemmas LemmaList `json:"lemmas"`
	// Pool is the NOUN-only subset of Lemmas used by the paragraph pass.
	Pool        LemmaList `json:"pool"`
	GivenLemmas LemmaList `json:"given_accum_lemmas"`
	NewLemmas   LemmaList `json:"new_accum_lemmas"`
}

// IsBreak reports whether the element counts as a structural break when
// measuring spans.
func (e *Element) IsBreak() bool {
	return e.Type == ElementHeading
}

// Window bounds the paragraphs an analysis covers.  Max == 0 is unbounded.
type Window struct {
	Offset int `json:"offset"`
	Max    int `json:"max"`
}

// Validate rejects negative bounds.
func (w Window) Validate() error {
	if w.Offset < 0 || w.Max < 0 {
		return errors.Newf(errors.ErrCodeInvalidWindow, "window offset %d / max %d must be >= 0", w.Offset, w.Max)
	}
	return nil
}

// Document is an ordered sequence of elements plus the state the coherence
// engine needs to decide when derived fields are stale.
type Document struct {
	ID       string     `json:"id"`
	Language string     `json:"language"`
	Elements []*Element `json:"elements"`

	window  Window
	words   int
	version uint64
}

// New returns an empty document.
func New(id, language string) *Document {
	return &Document{ID: id, Language: language, version: 1}
}

// Version returns the structural version.  It only ever increases.
func (d *Document) Version() uint64 { return d.version }

// Touch marks the document as structurally edited so derived given/new
// state is recomputed on the next analysis.
func (d *Document) Touch() { d.version++ }

// WordCount returns the document-wide word counter.
func (d *Document) WordCount() int { return d.words }

// NextPosition reserves n word positions and returns the first.
func (d *Document) NextPosition(n int) int {
	p := d.words
	d.words += n
	return p
}

// AppendElement adds e at the end of the document, fixing its position.
func (d *Document) AppendElement(e *Element) {
	e.Position = len(d.Elements)
	d.Elements = append(d.Elements, e)
	d.Touch()
}

// SetWindow replaces the processing window.
func (d *Document) SetWindow(w Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w != d.window {
		d.window = w
		d.Touch()
	}
	return nil
}

// ProcessingWindow returns the current window.
func (d *Document) ProcessingWindow() Window { return d.window }

// Window returns the elements inside the processing window.  Offset and Max
// count non-heading elements; a heading is kept when the next non-heading
// element would be inside the window.
func (d *Document) Window() []*Element {
	if d.window.Offset == 0 && d.window.Max == 0 {
		return d.Elements
	}
	out := make([]*Element, 0, len(d.Elements))
	content := 0
	for _, e := range d.Elements {
		in := content >= d.window.Offset && (d.window.Max == 0 || content < d.window.Offset+d.window.Max)
		if in {
			out = append(out, e)
		}
		if !e.IsBreak() {
			content++
		}
	}
	return out
}

// Paragraphs returns the paragraph-like elements inside the window.
func (d *Document) Paragraphs() []*Element {
	var out []*Element
	for _, e := range d.Window() {
		if e.Type.IsParagraphLike() {
			out = append(out, e)
		}
	}
	return out
}

// ElementAt returns the element at absolute position pos.
func (d *Document) ElementAt(pos int) (*Element, error) {
	if pos < 0 || pos >= len(d.Elements) {
		return nil, errors.Newf(errors.ErrCodeUnknownParagraph, "no element at position %d", pos)
	}
	return d.Elements[pos], nil
}
