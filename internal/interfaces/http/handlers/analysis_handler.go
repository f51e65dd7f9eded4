package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DiscourseLens/internal/application/analysis"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/middleware"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

// OptionsPayload overrides the server's default analysis options.  Unset
// fields keep the default.
type OptionsPayload struct {
	PronounVisible       *bool   `json:"pronoun_visible"`
	PostVerbSubjectsLeft *bool   `json:"post_verb_subjects_left"`
	MinTopics            *int    `json:"min_topics"`
	SortByCount          *bool   `json:"sort_by_count"`
	ImagePattern         *string `json:"image_pattern"`
	WindowOffset         *int    `json:"window_offset"`
	WindowMax            *int    `json:"window_max_paragraphs"`
}

func (p *OptionsPayload) apply(o coherence.Options) coherence.Options {
	if p == nil {
		return o
	}
	if p.PronounVisible != nil {
		o.PronounVisible = *p.PronounVisible
	}
	if p.PostVerbSubjectsLeft != nil {
		o.PostVerbSubjectsLeft = *p.PostVerbSubjectsLeft
	}
	if p.MinTopics != nil {
		o.MinTopics = *p.MinTopics
	}
	if p.SortByCount != nil {
		o.SortByCount = *p.SortByCount
	}
	if p.ImagePattern != nil {
		o.ImagePattern = *p.ImagePattern
	}
	if p.WindowOffset != nil {
		o.Window.Offset = *p.WindowOffset
	}
	if p.WindowMax != nil {
		o.Window.Max = *p.WindowMax
	}
	return o
}

// AnalyzeRequest is the body of POST /api/v1/analyses.  Exactly one of
// Document and Object is expected; Document wins when both are set.
type AnalyzeRequest struct {
	Document *document.ParsedDocument `json:"document"`
	Object   string                   `json:"object"`
	Options  *OptionsPayload          `json:"options"`
	Local    []int                    `json:"local"`
}

type AnalyzeResponse struct {
	Report     *coherence.Report `json:"report"`
	Cached     bool              `json:"cached"`
	DurationMS int64             `json:"duration_ms"`
	ArchiveKey string            `json:"archive_key,omitempty"`
}

// AnalysisHandler serves coherence analyses.
type AnalysisHandler struct {
	svc    analysis.Service
	logger logging.Logger

	mu       sync.RWMutex
	defaults coherence.Options
}

func NewAnalysisHandler(svc analysis.Service, defaults coherence.Options, logger logging.Logger) *AnalysisHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnalysisHandler{svc: svc, defaults: defaults, logger: logger.Named("http.analysis")}
}

// SetDefaults replaces the options requests start from.
func (h *AnalysisHandler) SetDefaults(opts coherence.Options) {
	h.mu.Lock()
	h.defaults = opts
	h.mu.Unlock()
}

func (h *AnalysisHandler) currentDefaults() coherence.Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaults
}

// Analyze handles POST /api/v1/analyses.  Local topic positions come from
// the body or from the "local" query parameter, e.g. ?local=0,2.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeInvalidDocument, "invalid request body"))
		return
	}
	local := req.Local
	if q := c.Query("local"); q != "" {
		positions, err := parsePositions(q)
		if err != nil {
			respondError(c, err)
			return
		}
		local = positions
	}

	res, err := h.svc.Analyze(c.Request.Context(), &analysis.Request{
		Document:       req.Document,
		Object:         req.Object,
		Options:        req.Options.apply(h.currentDefaults()),
		LocalPositions: local,
	})
	if err != nil {
		h.logger.Warn("analysis request failed",
			logging.String("request_id", middleware.GetRequestID(c)),
			logging.Err(err))
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, AnalyzeResponse{
		Report:     res.Report,
		Cached:     res.Cached,
		DurationMS: res.Duration.Milliseconds(),
		ArchiveKey: res.ArchiveKey,
	})
}
