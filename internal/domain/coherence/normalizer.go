package coherence

import (
	"regexp"
	"strings"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
)

// pronounBase maps personal pronoun forms onto their base form.
var pronounBase = map[string]string{
	"i": "i", "me": "i", "my": "i", "mine": "i", "myself": "i",
	"you": "you", "your": "you", "yours": "you", "yourself": "you", "yourselves": "you",
	"he": "he", "him": "he", "his": "he", "himself": "he",
	"she": "she", "her": "she", "hers": "she", "herself": "she",
	"it": "it", "its": "it", "itself": "it",
	"we": "we", "us": "we", "our": "we", "ours": "we", "ourselves": "we",
	"they": "they", "them": "they", "their": "they", "theirs": "they", "themselves": "they",
}

// lemmaCorrections fixes lemmas the pipeline gets wrong for this purpose.
var lemmaCorrections = map[string]string{
	"datum": "data",
}

// subjectDeps are the dependency labels of grammatical subjects.
var subjectDeps = map[string]struct{}{
	"nsubj": {}, "nsubjpass": {}, "nsubj:pass": {},
	"csubj": {}, "csubjpass": {}, "csubj:pass": {},
	"expl": {},
}

type phrase struct {
	text  string
	words int
}

// Normalizer turns pipeline tokens into annotated tokens using one registry
// snapshot.  It implements document.TokenNormalizer.
type Normalizer struct {
	lexicon              *cluster.Snapshot
	postVerbSubjectsLeft bool
	image                *regexp.Regexp
	phrases              []phrase
}

var _ document.TokenNormalizer = (*Normalizer)(nil)

// NewNormalizer compiles opts.ImagePattern and captures the snapshot's
// phrase list.
func NewNormalizer(snap *cluster.Snapshot, opts Options) (*Normalizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if snap == nil {
		snap = cluster.NewRegistry().Snapshot()
	}
	n := &Normalizer{
		lexicon:              snap,
		postVerbSubjectsLeft: opts.PostVerbSubjectsLeft,
		image:                regexp.MustCompile(opts.ImagePattern),
	}
	for _, p := range snap.Phrases() {
		n.phrases = append(n.phrases, phrase{text: p, words: len(strings.Fields(p))})
	}
	return n, nil
}

// IsImage reports whether text is an image placeholder.
func (n *Normalizer) IsImage(text string) bool {
	return n.image.MatchString(text)
}

// NormalizeSentence annotates the tokens of a body sentence.  Tokens before
// the ROOT token are left; a sentence without one is entirely left.  Forced
// topics and cluster lemmas are left wherever they stand.
func (n *Normalizer) NormalizeSentence(tokens []document.WireToken, start int) []document.Token {
	merged := n.mergePhrases(tokens)
	root := -1
	for i, t := range merged {
		if strings.EqualFold(t.Dep, "ROOT") {
			root = i
			break
		}
	}

	out := make([]document.Token, len(merged))
	for i, t := range merged {
		tok := n.annotate(t, start+i)
		tok.Left = root < 0 || i < root
		if n.postVerbSubjectsLeft {
			if _, ok := subjectDeps[strings.ToLower(t.Dep)]; ok {
				tok.Left = true
			}
		}
		if n.forced(tok.Lemma) {
			tok.Left = true
		}
		out[i] = tok
	}
	return out
}

// NormalizeHeading annotates heading tokens.  Every nominal and pronoun is
// left.
func (n *Normalizer) NormalizeHeading(tokens []document.WireToken, start int) []document.Token {
	merged := n.mergePhrases(tokens)
	out := make([]document.Token, len(merged))
	for i, t := range merged {
		tok := n.annotate(t, start+i)
		tok.Left = tok.POS.IsTopicEligible() || n.forced(tok.Lemma)
		out[i] = tok
	}
	return out
}

// forced reports whether lemma is a forced topic or a cluster's canonical
// lemma.
func (n *Normalizer) forced(lemma string) bool {
	return n.lexicon.IsTopic(lemma) || n.lexicon.IsClusterLemma(lemma)
}

type wireToken struct {
	document.WireToken
	phrase bool
}

// mergePhrases collapses runs of tokens spelling a registered multi-word
// phrase into one noun token.  Longer phrases win.
func (n *Normalizer) mergePhrases(tokens []document.WireToken) []wireToken {
	out := make([]wireToken, 0, len(tokens))
	if len(n.phrases) == 0 {
		for _, t := range tokens {
			out = append(out, wireToken{WireToken: t})
		}
		return out
	}

	lower := make([]string, len(tokens))
	for i, t := range tokens {
		lower[i] = strings.ToLower(t.Text)
	}

	for i := 0; i < len(tokens); {
		matched := false
		for _, p := range n.phrases {
			if p.words < 2 || i+p.words > len(tokens) {
				continue
			}
			if strings.Join(lower[i:i+p.words], " ") != p.text {
				continue
			}
			span := tokens[i : i+p.words]
			texts := make([]string, len(span))
			dep := span[len(span)-1].Dep
			for j, t := range span {
				texts[j] = t.Text
				if strings.EqualFold(t.Dep, "ROOT") {
					dep = t.Dep
				}
			}
			out = append(out, wireToken{
				WireToken: document.WireToken{
					Text:  strings.Join(texts, " "),
					POS:   "NOUN",
					Tag:   "NN",
					Dep:   dep,
					Lemma: p.text,
					Index: span[0].Index,
				},
				phrase: true,
			})
			i += p.words
			matched = true
			break
		}
		if !matched {
			out = append(out, wireToken{WireToken: tokens[i]})
			i++
		}
	}
	return out
}

func (n *Normalizer) annotate(t wireToken, position int) document.Token {
	pos := document.ClassifyPOS(t.POS, t.Tag, t.Text)
	tok := document.Token{
		Text:     t.Text,
		Tag:      t.Tag,
		Dep:      t.Dep,
		Position: position,
	}
	if t.phrase {
		tok.POS = document.POSNoun
		tok.Lemma = t.Lemma
		if l, ok := n.lexicon.Lookup(t.Lemma); ok {
			tok.Lemma = l
		}
		return tok
	}
	tok.Lemma, tok.POS = n.resolve(t.WireToken, pos)
	return tok
}

// resolve picks the lemma for a token.  Registry forms take precedence over
// the pipeline lemma; a pronoun that is a registered form becomes a noun.
func (n *Normalizer) resolve(t document.WireToken, pos document.POS) (string, document.POS) {
	surface := strings.ToLower(t.Text)
	lemma := strings.ToLower(strings.TrimSpace(t.Lemma))
	if lemma == "" || lemma == "-pron-" {
		lemma = surface
	}

	var out string
	switch {
	case pos.IsNominal():
		if l, ok := n.lexicon.Lookup(surface); ok {
			out = l
		} else if l, ok := n.lexicon.Lookup(lemma); ok {
			out = l
		} else {
			out = lemma
		}
	case pos.IsPronoun():
		if l, ok := n.lexicon.Lookup(surface); ok {
			out, pos = l, document.POSNoun
		} else if base, ok := pronounBase[surface]; ok {
			out = base
		} else {
			out = lemma
		}
	default:
		if l, ok := n.lexicon.Lookup(surface); ok {
			out = l
		} else if base, ok := pronounBase[surface]; ok && pos != document.POSPunct {
			out = base
		} else {
			out = lemma
		}
	}
	if c, ok := lemmaCorrections[out]; ok {
		out = c
	}
	return out, pos
}
