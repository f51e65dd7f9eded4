package document

import (
	"fmt"
	"strings"
)

// POS is the closed set of part-of-speech categories the coherence engine
// distinguishes.  Every pipeline tag collapses into one of these.
type POS uint8

const (
	POSOther   POS = 0
	POSNoun    POS = 1
	POSPronoun POS = 2 // personal / possessive pronouns (PRP, PRP$)
	POSVerb    POS = 3
	POSAdj     POS = 4
	POSAdv     POS = 5
	POSPunct   POS = 6
)

func (p POS) String() string {
	switch p {
	case POSNoun:
		return "NOUN"
	case POSPronoun:
		return "PRP"
	case POSVerb:
		return "VERB"
	case POSAdj:
		return "ADJ"
	case POSAdv:
		return "ADV"
	case POSPunct:
		return "PUNCT"
	default:
		return "OTHER"
	}
}

// IsNominal reports whether p is a noun.
func (p POS) IsNominal() bool { return p == POSNoun }

// IsPronoun reports whether p is a personal or possessive pronoun.
func (p POS) IsPronoun() bool { return p == POSPronoun }

// IsTopicEligible reports whether tokens of this category can enter a lemma
// list.
func (p POS) IsTopicEligible() bool { return p == POSNoun || p == POSPronoun }

// MarshalText implements encoding.TextMarshaler.
func (p POS) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *POS) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "NOUN":
		*p = POSNoun
	case "PRP":
		*p = POSPronoun
	case "VERB":
		*p = POSVerb
	case "ADJ":
		*p = POSAdj
	case "ADV":
		*p = POSAdv
	case "PUNCT":
		*p = POSPunct
	case "OTHER", "":
		*p = POSOther
	default:
		return fmt.Errorf("unknown POS %q", string(b))
	}
	return nil
}

// endPunctuation is the fixed set of sentence-final marks the pipeline may
// leave tagged as something other than PUNCT.
var endPunctuation = map[string]struct{}{
	".": {}, "!": {}, "?": {}, "…": {}, "...": {}, ";": {}, ":": {},
}

// ClassifyPOS maps a pipeline token (universal coarse tag, fine-grained tag,
// surface text) to the engine's POS.  Proper nouns become NOUN and only the
// PRP / PRP$ fine tags become PRP.
func ClassifyPOS(coarse, tag, text string) POS {
	if tag == "PRP" || tag == "PRP$" {
		return POSPronoun
	}
	if _, ok := endPunctuation[text]; ok {
		return POSPunct
	}
	switch strings.ToUpper(coarse) {
	case "NOUN", "PROPN":
		return POSNoun
	case "VERB", "AUX":
		return POSVerb
	case "ADJ":
		return POSAdj
	case "ADV":
		return POSAdv
	case "PUNCT":
		return POSPunct
	default:
		return POSOther
	}
}
