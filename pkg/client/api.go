package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

// AnalyzeOptions overrides the server's analysis defaults.  Nil fields keep
// the default.
type AnalyzeOptions struct {
	PronounVisible       *bool   `json:"pronoun_visible,omitempty"`
	PostVerbSubjectsLeft *bool   `json:"post_verb_subjects_left,omitempty"`
	MinTopics            *int    `json:"min_topics,omitempty"`
	SortByCount          *bool   `json:"sort_by_count,omitempty"`
	ImagePattern         *string `json:"image_pattern,omitempty"`
	WindowOffset         *int    `json:"window_offset,omitempty"`
	WindowMax            *int    `json:"window_max_paragraphs,omitempty"`
}

// AnalyzeRequest analyzes either an inline document or an object-store
// reference.
type AnalyzeRequest struct {
	Document *document.ParsedDocument `json:"document,omitempty"`
	Object   string                   `json:"object,omitempty"`
	Options  *AnalyzeOptions          `json:"options,omitempty"`
	// Local selects paragraphs for the local topic list; empty means all.
	Local []int `json:"-"`
}

type AnalyzeResult struct {
	Report     *coherence.Report `json:"report"`
	Cached     bool              `json:"cached"`
	DurationMS int64             `json:"duration_ms"`
	ArchiveKey string            `json:"archive_key,omitempty"`
}

// Registry is the server's cluster registry at one generation.
type Registry struct {
	Generation uint64            `json:"generation"`
	Clusters   []cluster.Cluster `json:"clusters"`
	Topics     []string          `json:"topics"`
	Undefined  []string          `json:"undefined_clusters"`
}

type Liveness struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type Readiness struct {
	Status     string                   `json:"status"`
	Components []common.ComponentHealth `json:"components"`
}

// Ready reports whether the server accepts traffic.
func (r *Readiness) Ready() bool { return r.Status == "ready" }

// Analyze runs one analysis.
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResult, error) {
	path := "/api/v1/analyses"
	if len(req.Local) > 0 {
		parts := make([]string, len(req.Local))
		for i, p := range req.Local {
			parts[i] = strconv.Itoa(p)
		}
		path += "?local=" + url.QueryEscape(strings.Join(parts, ","))
	}
	var out AnalyzeResult
	if _, err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clusters returns the current registry.
func (c *Client) Clusters(ctx context.Context) (*Registry, error) {
	var out Registry
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/clusters", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceClusters installs clusters and returns the resulting registry.
func (c *Client) ReplaceClusters(ctx context.Context, clusters []cluster.Cluster) (*Registry, error) {
	var out Registry
	body := map[string]interface{}{"clusters": clusters}
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/clusters", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetTopics replaces the forced topics and returns the resulting registry.
func (c *Client) SetTopics(ctx context.Context, topics []string) (*Registry, error) {
	var out Registry
	body := map[string]interface{}{"topics": topics}
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/topics", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Liveness, error) {
	var out Liveness
	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Readiness calls the readiness endpoint.  A not-ready server is not an
// error; check Ready on the result.
func (c *Client) Readiness(ctx context.Context) (*Readiness, error) {
	var out Readiness
	if _, err := c.do(ctx, http.MethodGet, "/readyz", nil, &out, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &out, nil
}
