package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
)

func tk(text, pos, tag, dep, lemma string) document.WireToken {
	return document.WireToken{Text: text, POS: pos, Tag: tag, Dep: dep, Lemma: lemma}
}

func sent(text string, toks ...document.WireToken) document.WireSentence {
	return document.WireSentence{Text: text, Tokens: toks}
}

func para(sents ...document.WireSentence) document.WireElement {
	return document.WireElement{Type: document.ElementParagraph, Sentences: sents}
}

func heading(text string, toks ...document.WireToken) document.WireElement {
	return document.WireElement{Type: document.ElementHeading, Text: text, Sentences: []document.WireSentence{sent(text, toks...)}}
}

func build(t *testing.T, reg *cluster.Registry, opts Options, elements ...document.WireElement) *document.Document {
	t.Helper()
	if reg == nil {
		reg = cluster.NewRegistry()
	}
	n, err := NewNormalizer(reg.Snapshot(), opts)
	require.NoError(t, err)
	doc, err := document.Build(&document.ParsedDocument{ID: "doc", Language: "en", Elements: elements}, n)
	require.NoError(t, err)
	return doc
}

func analyzer(t *testing.T, reg *cluster.Registry, opts Options, elements ...document.WireElement) *Analyzer {
	t.Helper()
	if reg == nil {
		reg = cluster.NewRegistry()
	}
	a, err := NewAnalyzer(build(t, reg, opts, elements...), reg, opts, nil)
	require.NoError(t, err)
	return a
}

// catDocument is "The cat sat. It was happy." / "The cat ran away."
func catDocument() []document.WireElement {
	return []document.WireElement{
		para(
			sent("The cat sat.",
				tk("The", "DET", "DT", "det", "the"),
				tk("cat", "NOUN", "NN", "nsubj", "cat"),
				tk("sat", "VERB", "VBD", "ROOT", "sit"),
				tk(".", "PUNCT", ".", "punct", ".")),
			sent("It was happy.",
				tk("It", "PRON", "PRP", "nsubj", "it"),
				tk("was", "AUX", "VBD", "ROOT", "be"),
				tk("happy", "ADJ", "JJ", "acomp", "happy"),
				tk(".", "PUNCT", ".", "punct", ".")),
		),
		para(
			sent("The cat ran away.",
				tk("The", "DET", "DT", "det", "the"),
				tk("cat", "NOUN", "NN", "nsubj", "cat"),
				tk("ran", "VERB", "VBD", "ROOT", "run"),
				tk("away", "ADV", "RB", "advmod", "away"),
				tk(".", "PUNCT", ".", "punct", ".")),
		),
	}
}

// vehicleDocument is "I bought a car. The auto broke."
func vehicleDocument() []document.WireElement {
	return []document.WireElement{
		para(
			sent("I bought a car.",
				tk("I", "PRON", "PRP", "nsubj", "I"),
				tk("bought", "VERB", "VBD", "ROOT", "buy"),
				tk("a", "DET", "DT", "det", "a"),
				tk("car", "NOUN", "NN", "dobj", "car"),
				tk(".", "PUNCT", ".", "punct", ".")),
			sent("The auto broke.",
				tk("The", "DET", "DT", "det", "the"),
				tk("auto", "NOUN", "NN", "nsubj", "auto"),
				tk("broke", "VERB", "VBD", "ROOT", "break"),
				tk(".", "PUNCT", ".", "punct", ".")),
		),
	}
}

func vehicleRegistry(t *testing.T) *cluster.Registry {
	t.Helper()
	r := cluster.NewRegistry()
	require.NoError(t, r.SetSynonyms([]cluster.Cluster{{Name: "vehicle", Forms: []string{"auto", "car"}}}))
	return r
}

// simple is a one-sentence paragraph "<subject> <verb> <object>." where the
// subject is left and the object right.
func simple(subject, verb, object string) document.WireElement {
	toks := []document.WireToken{
		tk("The", "DET", "DT", "det", "the"),
		tk(subject, "NOUN", "NN", "nsubj", subject),
		tk(verb, "VERB", "VBD", "ROOT", verb),
	}
	if object != "" {
		toks = append(toks,
			tk("the", "DET", "DT", "det", "the"),
			tk(object, "NOUN", "NN", "dobj", object))
	}
	toks = append(toks, tk(".", "PUNCT", ".", "punct", "."))
	return para(sent("The "+subject+" "+verb+".", toks...))
}

func texts(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, tp := range topics {
		out[i] = tp.Lemma
	}
	return out
}
