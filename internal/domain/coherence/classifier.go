package coherence

import (
	"context"
	"sort"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// pronounBucket is the single match key all pronouns share when pronouns
// are visible.
var pronounBucket = document.LemmaKey{POS: document.POSPronoun}

// Classifier assigns given and new lemma sets at sentence and paragraph
// level.
//
// Both passes work the same way: pass A builds an inverted index from match
// key to the ordered unit indices containing it, pass B walks the units and
// derives given (the key occurs in an earlier unit) and new (the unit is
// echoed by a later one) by index lookup only.
type Classifier struct {
	lexicon        *cluster.Snapshot
	pronounVisible bool
	progress       ProgressFunc
}

// NewClassifier classifies against snap.  A nil snapshot has no forced
// topics.
func NewClassifier(snap *cluster.Snapshot, opts Options) *Classifier {
	if snap == nil {
		snap = cluster.NewRegistry().Snapshot()
	}
	return &Classifier{lexicon: snap, pronounVisible: opts.PronounVisible, progress: opts.Progress}
}

// matchKey returns the key two lemmas must share to match.  Hidden pronouns
// never match.
func (c *Classifier) matchKey(l document.Lemma) (document.LemmaKey, bool) {
	if l.POS.IsPronoun() {
		if !c.pronounVisible {
			return document.LemmaKey{}, false
		}
		return pronounBucket, true
	}
	return l.Key(), true
}

// unitIndex maps a match key to the ascending indices of units holding it.
type unitIndex map[document.LemmaKey][]int

func (c *Classifier) index(lists []document.LemmaList) unitIndex {
	idx := unitIndex{}
	for i, ll := range lists {
		seen := map[document.LemmaKey]struct{}{}
		for _, l := range ll {
			k, ok := c.matchKey(l)
			if !ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			idx[k] = append(idx[k], i)
		}
	}
	return idx
}

// before returns the prefix of units that is strictly below i.
func before(units []int, i int) []int {
	return units[:sort.SearchInts(units, i)]
}

// Classify recomputes the given and new sets of every element in d's window.
// All previously derived sets are cleared first, so running it twice yields
// the same result.
func (c *Classifier) Classify(ctx context.Context, d *document.Document) error {
	for _, e := range d.Elements {
		e.GivenLemmas, e.NewLemmas = nil, nil
		for _, s := range e.Sentences {
			s.GivenLemmas, s.NewLemmas = nil, nil
		}
	}

	window := d.Window()
	paragraphs := d.Paragraphs()
	total := len(window) + len(paragraphs)
	done := 0
	step := func() {
		done++
		if c.progress != nil {
			c.progress(done, total)
		}
	}
	cancelled := func() error {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeAnalysisCancelled, "given/new classification cancelled")
		}
		return nil
	}

	for _, e := range window {
		if err := cancelled(); err != nil {
			return err
		}
		c.sentences(e)
		step()
	}

	pools := make([]document.LemmaList, len(paragraphs))
	for i, p := range paragraphs {
		pools[i] = p.Pool
	}
	idx := c.index(pools)
	for i, p := range paragraphs {
		if err := cancelled(); err != nil {
			return err
		}
		c.paragraph(paragraphs, idx, i, p)
		step()
	}
	return nil
}

// sentences runs the sentence pass inside one element.  Image sentences
// take no part.
func (c *Classifier) sentences(e *document.Element) {
	var units []*document.Sentence
	for _, s := range e.Sentences {
		if !s.Image {
			units = append(units, s)
		}
	}
	lists := make([]document.LemmaList, len(units))
	for i, s := range units {
		lists[i] = s.Lemmas
	}
	idx := c.index(lists)

	for i, s := range units {
		for _, l := range s.Lemmas {
			if k, ok := c.matchKey(l); ok {
				earlier := before(idx[k], i)
				if len(earlier) > 0 {
					s.GivenLemmas.Append(l)
				}
				if !l.POS.IsPronoun() {
					for _, j := range earlier {
						units[j].NewLemmas.Append(l)
					}
				}
			}
			if c.lexicon.IsTopic(l.Text) {
				s.GivenLemmas.Append(l)
			}
		}
	}
}

// paragraph runs the paragraph pass for paragraphs[i].  Given lemmas are
// those found in the immediately preceding paragraph's pool.  The first
// paragraph starts with all of its lemmas new.
func (c *Classifier) paragraph(paragraphs []*document.Element, idx unitIndex, i int, p *document.Element) {
	if i == 0 {
		p.NewLemmas = p.Lemmas.Clone()
		return
	}
	for _, l := range p.Lemmas {
		k, ok := c.matchKey(l)
		if !ok {
			continue
		}
		earlier := before(idx[k], i)
		if n := len(earlier); n > 0 && earlier[n-1] == i-1 {
			p.GivenLemmas.Append(l)
		}
		for _, j := range earlier {
			paragraphs[j].NewLemmas.Append(l)
		}
	}
}
