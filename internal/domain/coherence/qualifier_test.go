package coherence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
)

func statsFor(t *testing.T, stats []TopicStats, lemma string) TopicStats {
	t.Helper()
	for _, st := range stats {
		if st.Lemma == lemma {
			return st
		}
	}
	require.Failf(t, "missing statistics", "no statistics for %q", lemma)
	return TopicStats{}
}

// boundaryDocument has dog left in the first paragraph and right in the
// second, and bird exactly once.
func boundaryDocument() []document.WireElement {
	return []document.WireElement{
		simple("dog", "barked", ""),
		para(sent("I saw the dog.",
			tk("I", "PRON", "PRP", "nsubj", "I"),
			tk("saw", "VERB", "VBD", "ROOT", "see"),
			tk("the", "DET", "DT", "det", "the"),
			tk("dog", "NOUN", "NN", "dobj", "dog"))),
		simple("bird", "sang", ""),
	}
}

func TestQualifier_CatScenario(t *testing.T) {
	for _, visible := range []bool{false, true} {
		opts := Options{PronounVisible: visible}
		doc := classify(t, nil, opts, catDocument()...)
		global := NewQualifier(nil, opts).Global(doc)

		require.Equal(t, []string{"cat"}, texts(global), "pronouns visible: %t", visible)
		assert.Equal(t, document.POSNoun, global[0].POS)
		assert.Equal(t, 1, global[0].FirstPosition)
		assert.Equal(t, []int{1, 9}, global[0].Occurrences)
		assert.Equal(t, 2, global[0].LeftCount)
		assert.Equal(t, 2, global[0].ParagraphCount)
	}
}

func TestQualifier_HiddenPronounsAreNotCandidates(t *testing.T) {
	doc := classify(t, nil, Options{}, catDocument()...)
	for _, st := range NewQualifier(nil, Options{}).Stats(doc, ScopeParagraph, nil) {
		assert.NotEqual(t, document.POSPronoun, st.POS)
	}

	doc = classify(t, nil, Options{PronounVisible: true}, catDocument()...)
	it := statsFor(t, NewQualifier(nil, Options{PronounVisible: true}).Stats(doc, ScopeParagraph, nil), "it")
	assert.Equal(t, 1, it.LeftCount)
	assert.False(t, it.IsTopic)
}

func TestQualifier_Boundary(t *testing.T) {
	doc := classify(t, nil, Options{}, boundaryDocument()...)
	q := NewQualifier(nil, Options{})

	stats := q.Stats(doc, ScopeParagraph, nil)
	dog := statsFor(t, stats, "dog")
	assert.Equal(t, 1, dog.LeftCount)
	assert.Equal(t, 1, dog.RightCount)
	assert.True(t, dog.IsTopic, "left once, right in another paragraph")
	assert.Equal(t, 2, dog.ParagraphCount)
	assert.False(t, statsFor(t, stats, "bird").IsTopic)
	assert.Equal(t, 1, statsFor(t, stats, "bird").ParagraphCount)
	assert.Zero(t, statsFor(t, q.Stats(doc, ScopeGlobal, nil), "dog").ParagraphCount, "counted in paragraph scope only")

	assert.Equal(t, []string{"dog"}, texts(q.Global(doc)))
	assert.Empty(t, NewQualifier(nil, Options{MinTopics: 3}).Global(doc))
}

func TestQualifier_ZeroOccurrenceCluster(t *testing.T) {
	r := cluster.NewRegistry()
	require.NoError(t, r.SetSynonyms([]cluster.Cluster{
		{Name: "vehicle", Forms: []string{"car", "auto"}},
		{Name: "weather"},
	}))
	doc := classify(t, r, Options{}, catDocument()...)
	global := NewQualifier(r.Snapshot(), Options{}).Global(doc)

	require.Equal(t, []string{"cat", "vehicle", "weather"}, texts(global))
	for _, tp := range global[1:] {
		assert.True(t, tp.Cluster)
		assert.Equal(t, -1, tp.FirstPosition)
		assert.NotNil(t, tp.Occurrences)
		assert.Empty(t, tp.Occurrences)
	}
}

func TestQualifier_ClusterBypassesIsTopic(t *testing.T) {
	reg := vehicleRegistry(t)
	doc := classify(t, reg, Options{}, vehicleDocument()...)
	global := NewQualifier(reg.Snapshot(), Options{}).Global(doc)

	require.Equal(t, []string{"vehicle"}, texts(global))
	assert.Equal(t, []int{3, 6}, global[0].Occurrences)
	assert.Equal(t, 2, global[0].LeftCount, "car and auto are both left")
	assert.Equal(t, 1, global[0].ParagraphCount)
	assert.True(t, global[0].Cluster)
}

func TestQualifier_SpansSubtractBreaks(t *testing.T) {
	doc := classify(t, nil, Options{},
		para(
			sent("The cat sat.", tk("cat", "NOUN", "NN", "nsubj", "cat"), tk("sat", "VERB", "VBD", "ROOT", "sit")),
			sent("—", tk("—", "PUNCT", ":", "ROOT", "—")),
		),
		heading("Later"),
		simple("cat", "ran", ""),
		simple("dog", "slept", ""),
	)
	q := NewQualifier(nil, Options{})

	cat := statsFor(t, q.Stats(doc, ScopeGlobal, nil), "cat")
	// units: cat, break, heading, cat, dog -> three content units, span of two
	assert.InDelta(t, 200.0/3, cat.Span, 1e-9)
	assert.InDelta(t, 200.0/3, cat.LeftSpan, 1e-9)
	assert.InDelta(t, 200.0/3, cat.Coverage, 1e-9)
	assert.Equal(t, 2, cat.LeftCount)

	dog := statsFor(t, q.Stats(doc, ScopeParagraph, nil), "dog")
	assert.InDelta(t, 100.0/3, dog.Span, 1e-9)
	assert.Equal(t, 0, dog.RightCount)
}

func TestQualifier_LocalScope(t *testing.T) {
	doc := classify(t, nil, Options{},
		para(
			sent("The cat sat.", tk("cat", "NOUN", "NN", "nsubj", "cat"), tk("sat", "VERB", "VBD", "ROOT", "sit")),
			sent("The cat ran.", tk("cat", "NOUN", "NN", "nsubj", "cat"), tk("ran", "VERB", "VBD", "ROOT", "run")),
			sent("A dog barked.", tk("dog", "NOUN", "NN", "nsubj", "dog"), tk("barked", "VERB", "VBD", "ROOT", "bark")),
		),
		para(
			sent("The dog sat.", tk("dog", "NOUN", "NN", "nsubj", "dog"), tk("sat", "VERB", "VBD", "ROOT", "sit")),
			sent("The dog ran.", tk("dog", "NOUN", "NN", "nsubj", "dog"), tk("ran", "VERB", "VBD", "ROOT", "run")),
		),
	)
	q := NewQualifier(nil, Options{})
	stats := q.Stats(doc, ScopeLocal, doc.Elements[0])

	cat := statsFor(t, stats, "cat")
	assert.Equal(t, 2, cat.LeftCount)
	assert.Equal(t, 1, cat.FirstNew)
	assert.True(t, cat.IsTopic)
	assert.InDelta(t, 200.0/3, cat.Span, 1e-9)

	dog := statsFor(t, stats, "dog")
	assert.Equal(t, 1, dog.FirstNew)
	assert.Zero(t, dog.Span, "no left mention that is already given")
	assert.Zero(t, dog.Coverage)

	assert.Equal(t, []string{"cat", "dog"}, texts(q.Local(doc.Paragraphs())))
	assert.Equal(t, []string{"cat"}, texts(q.Local(doc.Paragraphs()[:1])))
}

func TestSortTopics(t *testing.T) {
	topics := []Topic{
		{Lemma: "weather", FirstPosition: -1},
		{Lemma: "cat", FirstPosition: 1, LeftCount: 2},
		{Lemma: "dog", FirstPosition: 5, LeftCount: 4},
		{Lemma: "bird", FirstPosition: 3, LeftCount: 2},
	}
	SortTopics(topics, false)
	assert.Equal(t, []string{"cat", "bird", "dog", "weather"}, texts(topics))
	SortTopics(topics, true)
	assert.Equal(t, []string{"dog", "cat", "bird", "weather"}, texts(topics))
}
