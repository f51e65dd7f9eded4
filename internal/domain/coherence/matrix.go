package coherence

import (
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// Cell is one populated matrix cell.  A skippable sentence has a cell in
// every column with only IsSkippable set.
type Cell struct {
	Text        string `json:"text,omitempty"`
	Position    int    `json:"position"`
	Left        bool   `json:"is_left"`
	IsGiven     bool   `json:"is_given"`
	IsNew       bool   `json:"is_new"`
	IsSkippable bool   `json:"is_skippable"`
}

// Row is one sentence of the matrix, or a sentinel separating paragraphs.
// Cells is indexed like the header; a nil cell is absent.
type Row struct {
	Sentinel  bool    `json:"sentinel,omitempty"`
	Paragraph int     `json:"paragraph"`
	Sentence  int     `json:"sentence"`
	Cells     []*Cell `json:"cells,omitempty"`
}

// Matrix is the topical-progression grid: topics across, sentences down.
type Matrix struct {
	Scope  Scope   `json:"scope"`
	Header []Topic `json:"header"`
	Rows   []Row   `json:"rows"`
}

// MarshalText encodes the scope by name.
func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Scope) UnmarshalText(b []byte) error {
	v, err := ParseScope(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScope is the inverse of Scope.String.
func ParseScope(name string) (Scope, error) {
	switch name {
	case "local":
		return ScopeLocal, nil
	case "global":
		return ScopeGlobal, nil
	case "paragraph":
		return ScopeParagraph, nil
	}
	return 0, errors.Newf(errors.ErrCodeValidation, "unknown scope %q", name)
}

// BuildMatrix lays header out over the sentences of elements.  Local
// matrices read given/new from the sentence sets only; other scopes also
// consult the paragraph sets.
func BuildMatrix(scope Scope, header []Topic, elements []*document.Element) *Matrix {
	m := &Matrix{Scope: scope, Header: header, Rows: []Row{}}
	for pi, e := range elements {
		if pi > 0 {
			m.Rows = append(m.Rows, Row{Sentinel: true, Paragraph: -1, Sentence: -1})
		}
		for si, s := range e.Sentences {
			if s.Image {
				continue
			}
			row := Row{Paragraph: e.Position, Sentence: si, Cells: make([]*Cell, len(header))}
			if s.IsSkippable() {
				for i := range row.Cells {
					row.Cells[i] = &Cell{Position: -1, IsSkippable: true}
				}
				m.Rows = append(m.Rows, row)
				continue
			}
			for i, t := range header {
				tok, ok := pick(s.Tokens, t.Key())
				if !ok {
					continue
				}
				k := t.Key()
				c := &Cell{
					Text:     tok.Text,
					Position: tok.Position,
					Left:     tok.Left,
					IsGiven:  s.GivenLemmas.Contains(k),
					IsNew:    s.NewLemmas.Contains(k),
				}
				if scope != ScopeLocal {
					c.IsGiven = c.IsGiven || e.GivenLemmas.Contains(k)
					c.IsNew = c.IsNew || e.NewLemmas.Contains(k)
				}
				row.Cells[i] = c
			}
			m.Rows = append(m.Rows, row)
		}
	}
	return m
}

// pick returns the token for k, preferring one on the left.
func pick(tokens []document.Token, k document.LemmaKey) (document.Token, bool) {
	var found document.Token
	ok := false
	for _, t := range tokens {
		if t.Key() != k {
			continue
		}
		if t.Left {
			return t, true
		}
		if !ok {
			found, ok = t, true
		}
	}
	return found, ok
}

// Column returns the cells of column i, one per row; sentinel rows give nil.
func (m *Matrix) Column(i int) []*Cell {
	out := make([]*Cell, len(m.Rows))
	for r, row := range m.Rows {
		if !row.Sentinel && i < len(row.Cells) {
			out[r] = row.Cells[i]
		}
	}
	return out
}
