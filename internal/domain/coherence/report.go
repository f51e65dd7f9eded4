package coherence

import (
	"context"

	"github.com/turtacn/DiscourseLens/internal/domain/document"
)

// ParagraphSummary lists the lemma sets of one paragraph for display.
type ParagraphSummary struct {
	Position int      `json:"position"`
	ID       string   `json:"id"`
	Lemmas   []string `json:"lemmas"`
	Given    []string `json:"given"`
	New      []string `json:"new"`
}

// Report is the full result of one analysis.
type Report struct {
	RunID              string             `json:"run_id,omitempty"`
	DocumentID         string             `json:"document_id"`
	Language           string             `json:"language"`
	DocumentVersion    uint64             `json:"document_version"`
	RegistryGeneration uint64             `json:"registry_generation"`
	Window             document.Window    `json:"window"`
	GlobalTopics       []Topic            `json:"global_topics"`
	LocalTopics        []Topic            `json:"local_topics"`
	Statistics         []TopicStats       `json:"statistics"`
	Matrix             *Matrix            `json:"matrix"`
	Paragraphs         []ParagraphSummary `json:"paragraphs"`
	UndefinedClusters  []string           `json:"undefined_clusters"`
	Warnings           []string           `json:"warnings,omitempty"`
}

// EmptyReport is returned when no analysis could run.
func EmptyReport(documentID string, warnings ...string) *Report {
	return &Report{
		DocumentID:        documentID,
		GlobalTopics:      []Topic{},
		LocalTopics:       []Topic{},
		Statistics:        []TopicStats{},
		Matrix:            &Matrix{Scope: ScopeGlobal, Header: []Topic{}, Rows: []Row{}},
		Paragraphs:        []ParagraphSummary{},
		UndefinedClusters: []string{},
		Warnings:          warnings,
	}
}

// TopicCount is the number of global topics.
func (r *Report) TopicCount() int { return len(r.GlobalTopics) }

// displayLemmas copies ll for display, hiding pronouns unless visible.
func displayLemmas(ll document.LemmaList, pronounVisible bool) []string {
	shown := ll.Clone().Filter(func(l document.Lemma) bool {
		return pronounVisible || !l.POS.IsPronoun()
	})
	return shown.Texts()
}

// Report runs the whole analysis.  localPositions selects the paragraphs for
// the local topic list; none means all of them.
func (a *Analyzer) Report(ctx context.Context, localPositions []int) (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	elements, err := a.paragraphs(localPositions)
	if err != nil {
		return nil, err
	}

	q := NewQualifier(a.snap, a.opts)
	global := q.Global(a.doc)
	SortTopics(global, a.opts.SortByCount)
	local := q.Local(elements)
	SortTopics(local, a.opts.SortByCount)

	r := &Report{
		DocumentID:         a.doc.ID,
		Language:           a.doc.Language,
		DocumentVersion:    a.stamp.version,
		RegistryGeneration: a.stamp.generation,
		Window:             a.doc.ProcessingWindow(),
		GlobalTopics:       global,
		LocalTopics:        local,
		Statistics:         q.Stats(a.doc, ScopeParagraph, nil),
		Matrix:             a.globalMatrix(),
		Paragraphs:         []ParagraphSummary{},
		UndefinedClusters:  a.snap.UndefinedClusters(),
	}
	if r.UndefinedClusters == nil {
		r.UndefinedClusters = []string{}
	}
	for _, p := range a.doc.Paragraphs() {
		r.Paragraphs = append(r.Paragraphs, ParagraphSummary{
			Position: p.Position,
			ID:       p.ID,
			Lemmas:   displayLemmas(p.Lemmas, a.opts.PronounVisible),
			Given:    displayLemmas(p.GivenLemmas, a.opts.PronounVisible),
			New:      displayLemmas(p.NewLemmas, a.opts.PronounVisible),
		})
	}
	for _, name := range r.UndefinedClusters {
		r.Warnings = append(r.Warnings, "cluster "+name+" has no surface forms")
	}
	return r, nil
}
