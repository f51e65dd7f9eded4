package coherence

import (
	"context"
	"sync"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// Recompute reasons reported by Refresh.
const (
	ReasonNone     = ""
	ReasonInitial  = "initial"
	ReasonDocument = "document"
	ReasonRegistry = "registry"
	ReasonOptions  = "options"
)

// stamp identifies the inputs derived state was computed from.
type stamp struct {
	version    uint64
	generation uint64
	options    string
}

// Analyzer owns the derived state of one document.  Given/new sets are
// recomputed from scratch whenever the document version, the registry
// generation or the options change, and reused otherwise.
//
// An Analyzer is safe for concurrent use; calls are serialized.
type Analyzer struct {
	mu       sync.Mutex
	doc      *document.Document
	registry *cluster.Registry
	opts     Options
	stop     *document.StopWords
	logger   logging.Logger

	valid  bool
	stamp  stamp
	snap   *cluster.Snapshot
	global *Matrix // default-order global matrix for stamp
}

// NewAnalyzer prepares an analyzer for doc.  A nil registry behaves as an
// empty one.
func NewAnalyzer(doc *document.Document, registry *cluster.Registry, opts Options, logger logging.Logger) (*Analyzer, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "document is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = cluster.NewRegistry()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := doc.SetWindow(opts.Window); err != nil {
		return nil, err
	}
	return &Analyzer{
		doc:      doc,
		registry: registry,
		opts:     opts,
		stop:     document.StopWordsFor(doc.Language),
		logger:   logger.Named("analyzer").With(logging.String("document_id", doc.ID)),
	}, nil
}

// Document returns the analyzed document.
func (a *Analyzer) Document() *document.Document { return a.doc }

// StopWords returns the stop list in use.  Edits take effect after the
// document is touched.
func (a *Analyzer) StopWords() *document.StopWords { return a.stop }

// SetOptions replaces the options.  Derived state is recomputed lazily.
func (a *Analyzer) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.doc.SetWindow(opts.Window); err != nil {
		return err
	}
	a.opts = opts
	return nil
}

// Refresh brings derived state up to date and reports why it was
// recomputed, or ReasonNone when it was current.
func (a *Analyzer) Refresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh(ctx)
}

func (a *Analyzer) refresh(ctx context.Context) (string, error) {
	snap := a.registry.Snapshot()
	st := stamp{version: a.doc.Version(), generation: snap.Generation(), options: a.opts.fingerprint()}
	if a.valid && st == a.stamp {
		return ReasonNone, nil
	}

	reason := ReasonInitial
	if a.stamp != (stamp{}) {
		switch {
		case st.version != a.stamp.version:
			reason = ReasonDocument
		case st.generation != a.stamp.generation:
			reason = ReasonRegistry
		default:
			reason = ReasonOptions
		}
	}

	a.valid = false
	a.global = nil
	norm, err := NewNormalizer(snap, a.opts)
	if err != nil {
		return reason, err
	}
	a.doc.Renormalize(norm)
	NewExtractor(a.stop).Document(a.doc)
	if err := NewClassifier(snap, a.opts).Classify(ctx, a.doc); err != nil {
		a.logger.Warn("classification aborted", logging.Err(err))
		return reason, err
	}

	a.stamp, a.snap, a.valid = st, snap, true
	a.logger.Debug("derived state recomputed",
		logging.String("reason", reason),
		logging.Uint64("version", st.version),
		logging.Uint64("generation", st.generation))
	return reason, nil
}

// Snapshot returns the registry snapshot the current state was computed
// with, refreshing first.
func (a *Analyzer) Snapshot(ctx context.Context) (*cluster.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	return a.snap, nil
}

// paragraphs resolves element positions to paragraph-like elements.  No
// positions means every paragraph in the window.
func (a *Analyzer) paragraphs(positions []int) ([]*document.Element, error) {
	if len(positions) == 0 {
		return a.doc.Paragraphs(), nil
	}
	out := make([]*document.Element, 0, len(positions))
	seen := map[int]struct{}{}
	for _, p := range positions {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		e, err := a.doc.ElementAt(p)
		if err != nil {
			return nil, err
		}
		if !e.Type.IsParagraphLike() {
			return nil, errors.Newf(errors.ErrCodeUnknownParagraph, "element %d is a %s, not a paragraph", p, e.Type)
		}
		out = append(out, e)
	}
	return out, nil
}

// GlobalTopics returns the topics of the whole window plus every declared
// cluster.
func (a *Analyzer) GlobalTopics(ctx context.Context) ([]Topic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	topics := NewQualifier(a.snap, a.opts).Global(a.doc)
	SortTopics(topics, a.opts.SortByCount)
	return topics, nil
}

// LocalTopics returns the union of the topics qualifying inside each of the
// given paragraphs.
func (a *Analyzer) LocalTopics(ctx context.Context, positions []int) ([]Topic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	elements, err := a.paragraphs(positions)
	if err != nil {
		return nil, err
	}
	topics := NewQualifier(a.snap, a.opts).Local(elements)
	SortTopics(topics, a.opts.SortByCount)
	return topics, nil
}

// Stats returns topic statistics in scope.  position selects the paragraph
// for ScopeLocal.
func (a *Analyzer) Stats(ctx context.Context, scope Scope, position int) ([]TopicStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	var e *document.Element
	if scope == ScopeLocal {
		elements, err := a.paragraphs([]int{position})
		if err != nil {
			return nil, err
		}
		e = elements[0]
	}
	return NewQualifier(a.snap, a.opts).Stats(a.doc, scope, e), nil
}

// GlobalMatrix returns the matrix of the whole window.  The default-order
// matrix is cached until derived state changes; callers must not modify it.
func (a *Analyzer) GlobalMatrix(ctx context.Context) (*Matrix, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	return a.globalMatrix(), nil
}

func (a *Analyzer) globalMatrix() *Matrix {
	if !a.opts.SortByCount && a.global != nil {
		return a.global
	}
	header := NewQualifier(a.snap, a.opts).Global(a.doc)
	SortTopics(header, a.opts.SortByCount)
	m := BuildMatrix(ScopeGlobal, header, a.doc.Paragraphs())
	if !a.opts.SortByCount {
		a.global = m
	}
	return m
}

// LocalMatrix returns the matrix of the given paragraphs with their local
// topics as header.
func (a *Analyzer) LocalMatrix(ctx context.Context, positions []int) (*Matrix, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.refresh(ctx); err != nil {
		return nil, err
	}
	elements, err := a.paragraphs(positions)
	if err != nil {
		return nil, err
	}
	header := NewQualifier(a.snap, a.opts).Local(elements)
	SortTopics(header, a.opts.SortByCount)
	return BuildMatrix(ScopeLocal, header, elements), nil
}
