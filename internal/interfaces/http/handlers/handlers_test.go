package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DiscourseLens/internal/application/analysis"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/interfaces/http/middleware"
	"github.com/turtacn/DiscourseLens/internal/testutil"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope[T any] struct {
	Success   bool                `json:"success"`
	Data      T                   `json:"data"`
	Error     *common.ErrorDetail `json:"error"`
	RequestID string              `json:"request_id"`
}

func setupRouter(svc analysis.Service, checkers ...HealthChecker) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	ah := NewAnalysisHandler(svc, coherence.Options{}, nil)
	ch := NewClusterHandler(svc)
	hh := NewHealthHandler("test", checkers...)
	r.POST("/api/v1/analyses", ah.Analyze)
	r.GET("/api/v1/clusters", ch.Get)
	r.PUT("/api/v1/clusters", ch.Replace)
	r.PUT("/api/v1/topics", ch.SetTopics)
	r.GET("/healthz", hh.Liveness)
	r.GET("/readyz", hh.Readiness)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestAnalyze_Document(t *testing.T) {
	r := setupRouter(analysis.NewService(analysis.Config{}, analysis.Deps{}))

	w := do(t, r, http.MethodPost, "/api/v1/analyses?local=0,1", AnalyzeRequest{Document: testutil.CatDocument()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode[AnalyzeResponse](t, w)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	require.Len(t, env.Data.Report.GlobalTopics, 1)
	assert.Equal(t, "cat", env.Data.Report.GlobalTopics[0].Lemma)
	assert.Equal(t, coherence.ScopeGlobal, env.Data.Report.Matrix.Scope)
	assert.False(t, env.Data.Cached)
}

func TestAnalyze_OptionsOverrideDefaults(t *testing.T) {
	r := setupRouter(analysis.NewService(analysis.Config{}, analysis.Deps{}))
	min := 3

	w := do(t, r, http.MethodPost, "/api/v1/analyses", AnalyzeRequest{
		Document: testutil.CatDocument(),
		Options:  &OptionsPayload{MinTopics: &min},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[AnalyzeResponse](t, w).Data.Report.GlobalTopics)
}

func TestAnalyze_SetDefaults(t *testing.T) {
	svc := analysis.NewService(analysis.Config{}, analysis.Deps{})
	h := NewAnalysisHandler(svc, coherence.Options{}, nil)
	r := gin.New()
	r.POST("/api/v1/analyses", h.Analyze)

	h.SetDefaults(coherence.Options{MinTopics: 3})
	w := do(t, r, http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Document: testutil.CatDocument()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[AnalyzeResponse](t, w).Data.Report.GlobalTopics)
}

func TestAnalyze_Errors(t *testing.T) {
	r := setupRouter(analysis.NewService(analysis.Config{}, analysis.Deps{}))
	neg := -1

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"malformed body", "/api/v1/analyses", "{", http.StatusBadRequest, "COH_002"},
		{"no document", "/api/v1/analyses", AnalyzeRequest{}, http.StatusBadRequest, "COMMON_002"},
		{"object without storage", "/api/v1/analyses", AnalyzeRequest{Object: "docs/a.json"}, http.StatusForbidden, "COMMON_015"},
		{"bad window", "/api/v1/analyses", AnalyzeRequest{Document: testutil.CatDocument(), Options: &OptionsPayload{WindowMax: &neg}}, http.StatusBadRequest, "COH_003"},
		{"bad local query", "/api/v1/analyses?local=a", AnalyzeRequest{Document: testutil.CatDocument()}, http.StatusBadRequest, "COMMON_002"},
		{"unknown paragraph", "/api/v1/analyses?local=9", AnalyzeRequest{Document: testutil.CatDocument()}, http.StatusBadRequest, "COH_006"},
		{"unknown element type", "/api/v1/analyses", AnalyzeRequest{Document: &document.ParsedDocument{
			Elements: []document.WireElement{{Type: "chart"}},
		}}, http.StatusBadRequest, "COH_002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			env := decode[json.RawMessage](t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAnalyze_PipelineUnavailable(t *testing.T) {
	r := setupRouter(analysis.NewService(analysis.Config{}, analysis.Deps{}))
	pd := &document.ParsedDocument{ID: "raw", Elements: []document.WireElement{
		{Type: document.ElementParagraph, Sentences: []document.WireSentence{{Text: "Untokenized."}}},
	}}

	w := do(t, r, http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Document: pd})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{analysis.WarnPipelineUnavailable}, decode[AnalyzeResponse](t, w).Data.Report.Warnings)
}

func TestClusters_RoundTrip(t *testing.T) {
	svc := analysis.NewService(analysis.Config{}, analysis.Deps{})
	r := setupRouter(svc)

	w := do(t, r, http.MethodGet, "/api/v1/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[RegistryResponse](t, w).Data
	assert.NotNil(t, empty.Clusters)
	assert.Empty(t, empty.Clusters)

	w = do(t, r, http.MethodPut, "/api/v1/clusters", `{"clusters":[{"name":"feline","forms":["cat","kitten"]},{"name":"weather"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reg := decode[RegistryResponse](t, w).Data
	assert.Len(t, reg.Clusters, 2)
	assert.Equal(t, []string{"weather"}, reg.Undefined)
	assert.Greater(t, reg.Generation, empty.Generation)

	w = do(t, r, http.MethodPut, "/api/v1/topics", SetTopicsRequest{Topics: []string{"engine", "fuel economy"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{"engine", "fuel economy"}, decode[RegistryResponse](t, w).Data.Topics)

	w = do(t, r, http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Document: testutil.CatDocument()})
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[AnalyzeResponse](t, w).Data.Report
	require.NotEmpty(t, report.GlobalTopics)
	assert.Equal(t, "feline", report.GlobalTopics[0].Lemma)
	assert.Equal(t, []string{"weather"}, report.UndefinedClusters)
}

func TestClusters_Invalid(t *testing.T) {
	r := setupRouter(analysis.NewService(analysis.Config{}, analysis.Deps{}))

	w := do(t, r, http.MethodPut, "/api/v1/clusters", `{"clusters":[{"name":""}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "COH_004", decode[json.RawMessage](t, w).Error.Code)

	w = do(t, r, http.MethodPut, "/api/v1/clusters", `[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/v1/topics", `{"topics":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubChecker common.ComponentHealth

func (s stubChecker) HealthCheck(context.Context) common.ComponentHealth {
	return common.ComponentHealth(s)
}

func TestHealth(t *testing.T) {
	svc := analysis.NewService(analysis.Config{}, analysis.Deps{})

	r := setupRouter(svc, stubChecker{Name: "redis", Status: common.HealthUp}, stubChecker{Name: "minio", Status: common.HealthDegraded})
	w := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode[LivenessResponse](t, w).Data.Status)

	w = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	ready := decode[ReadinessResponse](t, w).Data
	assert.Equal(t, "ready", ready.Status)
	require.Len(t, ready.Components, 2)
	assert.Equal(t, "redis", ready.Components[0].Name)

	r = setupRouter(svc, stubChecker{Name: "redis", Status: common.HealthDown, Message: "refused"})
	w = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", decode[ReadinessResponse](t, w).Data.Status)
}

func TestParsePositions(t *testing.T) {
	got, err := parsePositions(" 0, 2 ")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got)

	got, err = parsePositions("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = parsePositions("1,-2")
	assert.Error(t, err)
}
