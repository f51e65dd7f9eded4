package coherence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

func classify(t *testing.T, reg *cluster.Registry, opts Options, elements ...document.WireElement) *document.Document {
	t.Helper()
	if reg == nil {
		reg = cluster.NewRegistry()
	}
	doc := build(t, reg, opts, elements...)
	NewExtractor(document.StopWordsFor("en")).Document(doc)
	require.NoError(t, NewClassifier(reg.Snapshot(), opts).Classify(context.Background(), doc))
	return doc
}

// pronounParagraph is "He left. She stayed. The dog barked at him."
func pronounParagraph() document.WireElement {
	return para(
		sent("He left.",
			tk("He", "PRON", "PRP", "nsubj", "he"),
			tk("left", "VERB", "VBD", "ROOT", "leave")),
		sent("She stayed.",
			tk("She", "PRON", "PRP", "nsubj", "she"),
			tk("stayed", "VERB", "VBD", "ROOT", "stay")),
		sent("The dog barked at him.",
			tk("dog", "NOUN", "NN", "nsubj", "dog"),
			tk("barked", "VERB", "VBD", "ROOT", "bark"),
			tk("him", "PRON", "PRP", "pobj", "he")),
	)
}

func TestClassifier_SentencePass(t *testing.T) {
	doc := classify(t, vehicleRegistry(t), Options{}, vehicleDocument()...)
	s := doc.Elements[0].Sentences

	assert.Empty(t, s[0].GivenLemmas)
	assert.Equal(t, []string{"vehicle"}, s[1].GivenLemmas.Texts())
	assert.Equal(t, []string{"vehicle"}, s[0].NewLemmas.Texts(), "echoed by the second sentence")
	assert.Empty(t, s[1].NewLemmas)
}

func TestClassifier_PronounsHidden(t *testing.T) {
	doc := classify(t, nil, Options{}, pronounParagraph())
	s := doc.Elements[0].Sentences

	assert.Empty(t, s[1].GivenLemmas)
	assert.Empty(t, s[2].GivenLemmas)
	assert.Empty(t, s[0].NewLemmas)
}

func TestClassifier_PronounsVisibleMatchAnyPronoun(t *testing.T) {
	doc := classify(t, nil, Options{PronounVisible: true}, pronounParagraph())
	s := doc.Elements[0].Sentences

	assert.Equal(t, []string{"she"}, s[1].GivenLemmas.Texts(), "she matches he")
	assert.Equal(t, []string{"he"}, s[2].GivenLemmas.Texts())
	assert.Empty(t, s[0].NewLemmas, "pronouns never annotate earlier sentences")
	assert.Empty(t, s[1].NewLemmas)
}

func TestClassifier_ForcedTopicIsAlwaysGiven(t *testing.T) {
	r := cluster.NewRegistry()
	r.AddTopic("engine")
	doc := classify(t, r, Options{}, simple("engine", "stalled", ""))
	assert.Equal(t, []string{"engine"}, doc.Elements[0].Sentences[0].GivenLemmas.Texts())
}

func TestClassifier_ImageSentencesSkipped(t *testing.T) {
	doc := classify(t, nil, Options{}, para(
		sent("The cat sat.", tk("cat", "NOUN", "NN", "nsubj", "cat"), tk("sat", "VERB", "VBD", "ROOT", "sit")),
		sent("{{image-2}}", tk("cat", "NOUN", "NN", "ROOT", "cat")),
		sent("The cat ran.", tk("cat", "NOUN", "NN", "nsubj", "cat"), tk("ran", "VERB", "VBD", "ROOT", "run")),
	))
	s := doc.Elements[0].Sentences
	assert.Empty(t, s[1].GivenLemmas)
	assert.Empty(t, s[1].NewLemmas)
	assert.Equal(t, []string{"cat"}, s[2].GivenLemmas.Texts())
}

func TestClassifier_ParagraphPass(t *testing.T) {
	doc := classify(t, nil, Options{},
		simple("cat", "sat", "mat"),
		heading("Interlude", tk("Interlude", "NOUN", "NN", "ROOT", "interlude")),
		simple("dog", "chased", "cat"),
		simple("mat", "tore", ""),
	)
	p1, p2, p3 := doc.Elements[0], doc.Elements[2], doc.Elements[3]

	assert.Equal(t, []string{"cat", "mat"}, p1.NewLemmas.Texts(), "the first paragraph seeds all of its lemmas")
	assert.Empty(t, p1.GivenLemmas)
	assert.Equal(t, []string{"cat"}, p2.GivenLemmas.Texts(), "the heading is not a paragraph")
	assert.Empty(t, p3.GivenLemmas, "mat only occurs two paragraphs back")
	assert.Empty(t, p2.NewLemmas)
	assert.Empty(t, doc.Elements[1].GivenLemmas)
}

func TestClassifier_ParagraphPoolExcludesPronouns(t *testing.T) {
	doc := classify(t, nil, Options{PronounVisible: true},
		para(sent("He left.", tk("He", "PRON", "PRP", "nsubj", "he"), tk("left", "VERB", "VBD", "ROOT", "leave"))),
		para(sent("He returned.", tk("He", "PRON", "PRP", "nsubj", "he"), tk("returned", "VERB", "VBD", "ROOT", "return"))),
	)
	assert.Empty(t, doc.Elements[1].GivenLemmas)
	assert.Equal(t, []string{"he"}, doc.Elements[0].NewLemmas.Texts())
}

func TestClassifier_MonotonicForward(t *testing.T) {
	doc := classify(t, nil, Options{},
		simple("cat", "sat", "mat"),
		simple("dog", "chased", "cat"),
		simple("mat", "tore", "dog"),
		simple("bird", "sang", ""),
	)
	paragraphs := doc.Paragraphs()
	for i, p := range paragraphs {
		var earlier document.LemmaList
		for _, q := range paragraphs[:i] {
			earlier.Union(q.Lemmas)
		}
		for _, l := range p.GivenLemmas {
			assert.True(t, earlier.Contains(l.Key()), "%s given in paragraph %d", l.Text, i)
		}
	}
	assert.Equal(t, []string{"cat", "mat"}, paragraphs[0].NewLemmas.Texts())
	assert.Equal(t, []string{"dog"}, paragraphs[1].NewLemmas.Texts())
}

func TestClassifier_Idempotent(t *testing.T) {
	reg := vehicleRegistry(t)
	opts := Options{PronounVisible: true}
	doc := classify(t, reg, opts, append(catDocument(), vehicleDocument()...)...)

	type state struct{ given, new []document.LemmaList }
	capture := func() state {
		var s state
		for _, e := range doc.Elements {
			s.given = append(s.given, e.GivenLemmas.Clone())
			s.new = append(s.new, e.NewLemmas.Clone())
			for _, st := range e.Sentences {
				s.given = append(s.given, st.GivenLemmas.Clone())
				s.new = append(s.new, st.NewLemmas.Clone())
			}
		}
		return s
	}
	first := capture()
	require.NoError(t, NewClassifier(reg.Snapshot(), opts).Classify(context.Background(), doc))
	assert.Equal(t, first, capture())
}

func TestClassifier_Cancelled(t *testing.T) {
	doc := build(t, nil, Options{}, catDocument()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClassifier(nil, Options{}).Classify(ctx, doc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisCancelled))
}

func TestClassifier_Progress(t *testing.T) {
	doc := build(t, nil, Options{}, catDocument()...)
	var calls [][2]int
	opts := Options{Progress: func(done, total int) { calls = append(calls, [2]int{done, total}) }}
	require.NoError(t, NewClassifier(nil, opts).Classify(context.Background(), doc))
	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, calls)
}
