// Package coherence is the topical-progression engine.  It normalizes
// pipeline tokens against the cluster registry, extracts per-sentence and
// per-paragraph lemma lists, classifies every lemma occurrence as given or
// new, qualifies topics and lays them out as a progression matrix.
package coherence

import (
	"fmt"
	"regexp"

	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// DefaultImagePattern matches the placeholder the pipeline leaves where an
// inline image was.
const DefaultImagePattern = `\{\{image-\d+\}\}`

// ProgressFunc receives the number of processed units and the total.  It is
// called from the goroutine running the analysis.
type ProgressFunc func(done, total int)

// Options tunes one analysis.
type Options struct {
	// PronounVisible lets personal pronouns match each other and appear as
	// topics.
	PronounVisible bool
	// PostVerbSubjectsLeft marks nominal subjects after the main verb as
	// left.
	PostVerbSubjectsLeft bool
	// MinTopics is the minimum effective left count for a topic.  Values
	// below 1 are treated as 2.
	MinTopics int
	// SortByCount orders matrix headers by descending left count instead of
	// first position.
	SortByCount bool
	// ImagePattern overrides DefaultImagePattern.
	ImagePattern string
	// Window restricts the analysis to a run of paragraphs.
	Window document.Window

	Progress ProgressFunc
}

func (o Options) withDefaults() Options {
	if o.MinTopics < 1 {
		o.MinTopics = 2
	}
	if o.ImagePattern == "" {
		o.ImagePattern = DefaultImagePattern
	}
	return o
}

// Validate checks the window and the image pattern.
func (o Options) Validate() error {
	if err := o.Window.Validate(); err != nil {
		return err
	}
	if o.ImagePattern != "" {
		if _, err := regexp.Compile(o.ImagePattern); err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "invalid image pattern")
		}
	}
	return nil
}

// fingerprint identifies the options that change derived state.
func (o Options) fingerprint() string {
	o = o.withDefaults()
	return fmt.Sprintf("pv=%t;pvs=%t;min=%d;img=%s", o.PronounVisible, o.PostVerbSubjectsLeft, o.MinTopics, o.ImagePattern)
}

// Key identifies every option that changes a Report.  Progress is ignored.
func (o Options) Key() string {
	return fmt.Sprintf("%s;sort=%t;win=%d/%d", o.fingerprint(), o.SortByCount, o.Window.Offset, o.Window.Max)
}
