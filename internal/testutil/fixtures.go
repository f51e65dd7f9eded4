package testutil

import "github.com/turtacn/DiscourseLens/internal/domain/document"

// Tok builds a pipeline token.
func Tok(text, pos, tag, dep, lemma string) document.WireToken {
	return document.WireToken{Text: text, POS: pos, Tag: tag, Dep: dep, Lemma: lemma}
}

// SubjectVerb is the sentence "The <subject> <verb>." with the subject left
// of the main verb.
func SubjectVerb(subject, verb, verbLemma string) document.WireSentence {
	return document.WireSentence{
		Text: "The " + subject + " " + verb + ".",
		Tokens: []document.WireToken{
			Tok("The", "DET", "DT", "det", "the"),
			Tok(subject, "NOUN", "NN", "nsubj", subject),
			Tok(verb, "VERB", "VBD", "ROOT", verbLemma),
		},
	}
}

// Paragraph wraps sentences in a paragraph element.
func Paragraph(sentences ...document.WireSentence) document.WireElement {
	return document.WireElement{Type: document.ElementParagraph, Sentences: sentences}
}

// Heading is a heading element carrying only text.
func Heading(text string) document.WireElement {
	return document.WireElement{Type: document.ElementHeading, Text: text}
}

// CatDocument has two paragraphs, "The cat sat." and "The cat ran.", so
// "cat" is new then given and qualifies as a global topic.
func CatDocument() *document.ParsedDocument {
	return &document.ParsedDocument{ID: "cats", Language: "en", Elements: []document.WireElement{
		Paragraph(SubjectVerb("cat", "sat", "sit")),
		Paragraph(SubjectVerb("cat", "ran", "run")),
	}}
}

// Untokenized returns pd with every sentence's tokens removed, as a
// document looks when the linguistic pipeline was unavailable.
func Untokenized(pd *document.ParsedDocument) *document.ParsedDocument {
	out := *pd
	out.Elements = make([]document.WireElement, len(pd.Elements))
	for i, e := range pd.Elements {
		e.Sentences = append([]document.WireSentence(nil), e.Sentences...)
		for j := range e.Sentences {
			e.Sentences[j].Tokens = nil
		}
		out.Elements[i] = e
	}
	return &out
}
