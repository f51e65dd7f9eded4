package coherence

import (
	"sort"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
)

// Scope selects the units topic statistics are counted over.
type Scope uint8

const (
	// ScopeLocal counts sentences of one paragraph.
	ScopeLocal Scope = iota
	// ScopeGlobal counts sentences of the whole window.
	ScopeGlobal
	// ScopeParagraph counts paragraphs of the whole window.
	ScopeParagraph
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeGlobal:
		return "global"
	case ScopeParagraph:
		return "paragraph"
	default:
		return "unknown"
	}
}

// TopicStats are the counts one lemma gets in one scope.  Spans and
// coverages are percentages of the non-break units in the scope.
type TopicStats struct {
	Lemma         string       `json:"lemma"`
	POS           document.POS `json:"pos"`
	FirstPosition int          `json:"first_position"`
	LeftCount     int          `json:"left_count"`
	RightCount    int          `json:"right_count"`
	LeftSpan      float64      `json:"left_span"`
	Span          float64      `json:"span"`
	LeftCoverage  float64      `json:"left_coverage"`
	Coverage      float64      `json:"coverage"`
	FirstNew      int          `json:"first_new"`
	// ParagraphCount is the number of paragraphs the lemma occurs in.  It
	// is only counted in paragraph scope.
	ParagraphCount int   `json:"paragraph_count,omitempty"`
	IsTopic        bool  `json:"is_topic"`
	Cluster        bool  `json:"is_cluster"`
	Occurrences    []int `json:"occurrences"`
}

// Key returns the (POS, lemma) identity of the statistics.
func (t TopicStats) Key() document.LemmaKey {
	return document.LemmaKey{POS: t.POS, Text: t.Lemma}
}

// Topic is one qualified topic: a matrix column header.
type Topic struct {
	Lemma         string       `json:"lemma"`
	POS           document.POS `json:"pos"`
	FirstPosition int          `json:"first_position"` // -1 when it never occurs
	LeftCount     int          `json:"left_count"`
	// ParagraphCount is set on global headers.
	ParagraphCount int   `json:"paragraph_count,omitempty"`
	Cluster        bool  `json:"is_cluster"`
	Occurrences    []int `json:"occurrences"`
}

// Key returns the (POS, lemma) identity of the topic.
func (t Topic) Key() document.LemmaKey {
	return document.LemmaKey{POS: t.POS, Text: t.Lemma}
}

func (t TopicStats) topic() Topic {
	return Topic{
		Lemma:          t.Lemma,
		POS:            t.POS,
		FirstPosition:  t.FirstPosition,
		LeftCount:      t.LeftCount,
		ParagraphCount: t.ParagraphCount,
		Cluster:        t.Cluster,
		Occurrences:    append([]int{}, t.Occurrences...),
	}
}

// unit is one counting unit: a sentence or a whole paragraph.
type unit struct {
	group  int // paragraph the unit belongs to, for the is_topic test
	brk    bool
	tokens []document.Token
	lemmas document.LemmaList
	given  document.LemmaList
}

// Qualifier computes topic statistics and decides which lemmas are topics.
type Qualifier struct {
	lexicon        *cluster.Snapshot
	pronounVisible bool
	minTopics      int
}

// NewQualifier qualifies against snap.
func NewQualifier(snap *cluster.Snapshot, opts Options) *Qualifier {
	opts = opts.withDefaults()
	if snap == nil {
		snap = cluster.NewRegistry().Snapshot()
	}
	return &Qualifier{lexicon: snap, pronounVisible: opts.PronounVisible, minTopics: opts.MinTopics}
}

// localUnits are the sentences of e, each its own group.
func localUnits(e *document.Element) []unit {
	var out []unit
	for _, s := range e.Sentences {
		if s.Image {
			continue
		}
		out = append(out, unit{
			group:  len(out),
			brk:    s.IsSkippable(),
			tokens: s.Tokens,
			lemmas: s.Lemmas,
			given:  s.GivenLemmas,
		})
	}
	return out
}

// globalUnits are the sentences of every paragraph in the window, grouped by
// paragraph.  Headings are break units.
func globalUnits(d *document.Document) []unit {
	var out []unit
	group := 0
	for _, e := range d.Window() {
		switch {
		case e.IsBreak():
			out = append(out, unit{group: -1, brk: true})
		case e.Type.IsParagraphLike():
			for _, s := range e.Sentences {
				if s.Image {
					continue
				}
				out = append(out, unit{
					group:  group,
					brk:    s.IsSkippable(),
					tokens: s.Tokens,
					lemmas: s.Lemmas,
					given:  s.GivenLemmas,
				})
			}
			group++
		}
	}
	return out
}

// paragraphUnits are the paragraphs of the window.  Headings are break
// units.
func paragraphUnits(d *document.Document) []unit {
	var out []unit
	group := 0
	for _, e := range d.Window() {
		switch {
		case e.IsBreak():
			out = append(out, unit{group: -1, brk: true})
		case e.Type.IsParagraphLike():
			var tokens []document.Token
			for _, s := range e.Sentences {
				if !s.Image {
					tokens = append(tokens, s.Tokens...)
				}
			}
			out = append(out, unit{
				group:  group,
				tokens: tokens,
				lemmas: e.Lemmas,
				given:  e.GivenLemmas,
			})
			group++
		}
	}
	return out
}

// candidates returns the lemmas of units in first-appearance order.
func (q *Qualifier) candidates(units []unit) document.LemmaList {
	var out document.LemmaList
	for _, u := range units {
		if u.brk {
			continue
		}
		for _, l := range u.lemmas {
			if l.POS.IsPronoun() && !q.pronounVisible {
				continue
			}
			out.Append(l)
		}
	}
	return out
}

// givenContains matches k against a given set the way the classifier
// matched it.
func (q *Qualifier) givenContains(given document.LemmaList, k document.LemmaKey) bool {
	if k.POS.IsPronoun() {
		for _, l := range given {
			if l.POS.IsPronoun() {
				return true
			}
		}
		return false
	}
	return given.Contains(k)
}

// stats computes statistics for every candidate lemma of units.
func (q *Qualifier) stats(units []unit, scope Scope) []TopicStats {
	content := 0
	for _, u := range units {
		if !u.brk {
			content++
		}
	}
	// breaksBefore[i] is the number of break units before index i.
	breaksBefore := make([]int, len(units)+1)
	for i, u := range units {
		breaksBefore[i+1] = breaksBefore[i]
		if u.brk {
			breaksBefore[i+1]++
		}
	}
	spanOf := func(first, last int) float64 {
		if first < 0 || content == 0 {
			return 0
		}
		n := last - first + 1 - (breaksBefore[last+1] - breaksBefore[first])
		return percent(n, content)
	}

	out := []TopicStats{}
	for _, l := range q.candidates(units) {
		k := l.Key()
		st := TopicStats{
			Lemma:         l.Text,
			POS:           l.POS,
			FirstPosition: l.Position,
			Cluster:       l.POS.IsNominal() && q.lexicon.IsClusterLemma(l.Text),
			Occurrences:   []int{},
		}
		first, last, leftFirst, leftLast := -1, -1, -1, -1
		leftGroups := map[int]struct{}{}
		anyGroups := map[int]struct{}{}

		for ui, u := range units {
			if u.brk {
				continue
			}
			hasLeft, hasAny := false, false
			for _, t := range u.tokens {
				if t.Key() != k {
					continue
				}
				hasAny = true
				hasLeft = hasLeft || t.Left
				st.Occurrences = append(st.Occurrences, t.Position)
			}
			if !hasAny {
				continue
			}
			if first < 0 {
				first = ui
			}
			last = ui
			anyGroups[u.group] = struct{}{}
			if hasLeft {
				st.LeftCount++
				if leftFirst < 0 {
					leftFirst = ui
				}
				leftLast = ui
				leftGroups[u.group] = struct{}{}
				if !q.givenContains(u.given, k) {
					st.FirstNew++
				}
			} else {
				st.RightCount++
			}
		}

		st.Span = spanOf(first, last)
		st.LeftSpan = spanOf(leftFirst, leftLast)
		st.Coverage = percent(st.LeftCount+st.RightCount, content)
		st.LeftCoverage = percent(st.LeftCount, content)
		if scope == ScopeParagraph {
			st.ParagraphCount = len(anyGroups)
		}
		if scope == ScopeLocal && st.LeftCount-st.FirstNew == 0 {
			st.Span, st.LeftSpan, st.Coverage, st.LeftCoverage = 0, 0, 0, 0
		}

		switch len(leftGroups) {
		case 0:
		case 1:
			for g := range anyGroups {
				if _, ok := leftGroups[g]; !ok {
					st.IsTopic = true
				}
			}
		default:
			st.IsTopic = true
		}
		out = append(out, st)
	}
	return out
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) * 100 / float64(of)
}

// qualifies applies the topic rule.  A single left occurrence counts as two;
// cluster lemmas skip the is_topic test but not the threshold.
func (q *Qualifier) qualifies(st TopicStats) bool {
	eff := st.LeftCount
	if eff == 1 {
		eff = 2
	}
	if eff < q.minTopics {
		return false
	}
	return st.Cluster || st.IsTopic
}

// Stats returns the statistics of every candidate lemma in scope.  For
// ScopeLocal, e selects the paragraph; it is ignored otherwise.
func (q *Qualifier) Stats(d *document.Document, scope Scope, e *document.Element) []TopicStats {
	switch scope {
	case ScopeLocal:
		if e == nil {
			return nil
		}
		return q.stats(localUnits(e), scope)
	case ScopeGlobal:
		return q.stats(globalUnits(d), scope)
	default:
		return q.stats(paragraphUnits(d), ScopeParagraph)
	}
}

// Local qualifies topics per paragraph of elements and merges them.  A topic
// appears once, at its earliest position.
func (q *Qualifier) Local(elements []*document.Element) []Topic {
	out := []Topic{}
	at := map[document.LemmaKey]int{}
	for _, e := range elements {
		for _, st := range q.stats(localUnits(e), ScopeLocal) {
			if !q.qualifies(st) {
				continue
			}
			if i, ok := at[st.Key()]; ok {
				out[i].LeftCount += st.LeftCount
				out[i].Occurrences = append(out[i].Occurrences, st.Occurrences...)
				if st.FirstPosition < out[i].FirstPosition {
					out[i].FirstPosition = st.FirstPosition
				}
				continue
			}
			at[st.Key()] = len(out)
			out = append(out, st.topic())
		}
	}
	for i := range out {
		sort.Ints(out[i].Occurrences)
	}
	SortTopics(out, false)
	return out
}

// Global qualifies topics over the paragraphs of d and appends every
// declared cluster.  A cluster that never occurs gets an empty occurrence
// list and position -1.
func (q *Qualifier) Global(d *document.Document) []Topic {
	all := q.stats(paragraphUnits(d), ScopeParagraph)
	byKey := make(map[document.LemmaKey]TopicStats, len(all))
	out := []Topic{}
	at := map[document.LemmaKey]struct{}{}
	for _, st := range all {
		byKey[st.Key()] = st
		if q.qualifies(st) {
			at[st.Key()] = struct{}{}
			out = append(out, st.topic())
		}
	}
	for _, name := range q.lexicon.ClusterNames() {
		k := document.LemmaKey{POS: document.POSNoun, Text: name}
		if _, ok := at[k]; ok {
			continue
		}
		at[k] = struct{}{}
		if st, ok := byKey[k]; ok {
			out = append(out, st.topic())
			continue
		}
		out = append(out, Topic{
			Lemma:         name,
			POS:           document.POSNoun,
			FirstPosition: -1,
			Cluster:       true,
			Occurrences:   []int{},
		})
	}
	SortTopics(out, false)
	return out
}

// SortTopics orders topics by first position, or by descending left count
// with first position breaking ties.  Topics that never occur go last in
// their existing order.
func SortTopics(topics []Topic, byCount bool) {
	sort.SliceStable(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if (a.FirstPosition < 0) != (b.FirstPosition < 0) {
			return b.FirstPosition < 0
		}
		if a.FirstPosition < 0 {
			return false
		}
		if byCount && a.LeftCount != b.LeftCount {
			return a.LeftCount > b.LeftCount
		}
		return a.FirstPosition < b.FirstPosition
	})
}
