package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	w = serve(r, http.MethodGet, "/x", map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Body.String())
}

func TestRequestID_StoredOnRequestContext(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, common.RequestIDFrom(c.Request.Context())) })

	w := serve(r, http.MethodGet, "/x", map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Body.String())
}

func TestRequestLogging_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), RequestLogging(logging.NewLoggerFromCore(core), DefaultLoggingConfig()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/ok?x=1", nil)
	serve(r, http.MethodGet, "/bad", nil)
	serve(r, http.MethodGet, "/boom", nil)
	serve(r, http.MethodGet, "/healthz", nil)

	entries := logs.All()
	require.Len(t, entries, 3, "skip paths are not logged")
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok?x=1", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(logging.NewNopLogger()))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "COMMON_001")
	assert.NotContains(t, w.Body.String(), "kaboom")
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(prometheus.NewAppMetrics(prometheus.NewNoopCollector())))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/items/7", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/nowhere", nil).Code)
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(4))
	r.POST("/echo", func(c *gin.Context) {
		b, err := c.GetRawData()
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(b))
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("abc"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("too long"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func corsRouter(origins ...string) *gin.Engine {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/api", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.OPTIONS("/api", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	return r
}

func TestCORS_Preflight(t *testing.T) {
	w := serve(corsRouter("https://app.example.com"), http.MethodOptions, "/api", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_Origins(t *testing.T) {
	r := corsRouter("https://a.com", "*.example.org")

	w := serve(r, http.MethodGet, "/api", map[string]string{"Origin": "https://a.com"})
	assert.Equal(t, "https://a.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))

	w = serve(r, http.MethodGet, "/api", map[string]string{"Origin": "https://docs.example.org"})
	assert.Equal(t, "https://docs.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/api", map[string]string{"Origin": "https://evil.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(corsRouter("*"), http.MethodGet, "/api", map[string]string{"Origin": "https://any.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
