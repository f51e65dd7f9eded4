package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/database/redis"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/internal/testutil"
	pkgerrors "github.com/turtacn/DiscourseLens/pkg/errors"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

type MockSource struct{ mock.Mock }

func (m *MockSource) Load(ctx context.Context, ref string) (*document.ParsedDocument, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.ParsedDocument), args.Error(1)
}

type MockArchive struct{ mock.Mock }

func (m *MockArchive) SaveReport(ctx context.Context, runID string, v interface{}) (string, error) {
	args := m.Called(ctx, runID, v)
	return args.String(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) PublishAnalysisCompleted(ctx context.Context, payload kafka.AnalysisCompletedPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func topicLemmas(r *coherence.Report) []string {
	out := make([]string, len(r.GlobalTopics))
	for i, t := range r.GlobalTopics {
		out[i] = t.Lemma
	}
	return out
}

func TestAnalyze_Document(t *testing.T) {
	svc := NewService(Config{}, Deps{})
	res, err := svc.Analyze(context.Background(), &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)

	assert.Equal(t, []string{"cat"}, topicLemmas(res.Report))
	assert.Equal(t, "en", res.Report.Language)
	assert.NotEmpty(t, res.Report.RunID)
	assert.False(t, res.Cached)
	assert.Len(t, res.Report.Paragraphs, 2)
}

func TestAnalyze_LogsRequestID(t *testing.T) {
	logger := testutil.NewMockLogger()
	svc := NewService(Config{}, Deps{Logger: logger})
	ctx := context.WithValue(context.Background(), common.ContextKeyRequestID, "req-7")

	_, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)

	msg, ok := logger.Find("info", "analysis completed")
	require.True(t, ok)
	id, _ := msg.Field("request_id")
	assert.Equal(t, "req-7", id)
}

func TestAnalyze_PipelineUnavailable(t *testing.T) {
	pub := new(MockPublisher)
	logger := testutil.NewMockLogger()
	svc := NewService(Config{}, Deps{Publisher: pub, Logger: logger})

	res, err := svc.Analyze(context.Background(), &Request{Document: testutil.Untokenized(testutil.CatDocument())})
	require.NoError(t, err)
	msg, ok := logger.Find("warn", "pipeline unavailable, returning empty report")
	require.True(t, ok)
	assert.Equal(t, "analysis", msg.Logger)
	id, _ := msg.Field("document_id")
	assert.Equal(t, "cats", id)
	assert.Equal(t, []string{WarnPipelineUnavailable}, res.Report.Warnings)
	assert.Empty(t, res.Report.GlobalTopics)
	assert.NotNil(t, res.Report.GlobalTopics)
	pub.AssertNotCalled(t, "PublishAnalysisCompleted", mock.Anything, mock.Anything)
}

func TestAnalyze_EmptyDocumentIsNotAPipelineFailure(t *testing.T) {
	svc := NewService(Config{}, Deps{})
	res, err := svc.Analyze(context.Background(), &Request{Document: &document.ParsedDocument{ID: "empty"}})
	require.NoError(t, err)
	assert.Empty(t, res.Report.Warnings)
}

func TestAnalyze_Validation(t *testing.T) {
	svc := NewService(Config{}, Deps{})
	ctx := context.Background()

	_, err := svc.Analyze(ctx, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))

	_, err = svc.Analyze(ctx, &Request{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeBadRequest))

	_, err = svc.Analyze(ctx, &Request{Object: "minio://docs/a.json"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeFeatureDisabled))

	_, err = svc.Analyze(ctx, &Request{Document: testutil.CatDocument(), Options: coherence.Options{Window: document.Window{Max: -1}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidWindow))

	_, err = svc.Analyze(ctx, &Request{Document: testutil.CatDocument(), LocalPositions: []int{7}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeUnknownParagraph))
}

func TestAnalyze_FromSourceArchivesAndPublishes(t *testing.T) {
	source, archive, pub := new(MockSource), new(MockArchive), new(MockPublisher)
	source.On("Load", mock.Anything, "minio://docs/cats.json").Return(testutil.CatDocument(), nil)
	archive.On("SaveReport", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("*coherence.Report")).
		Return("reports/x.json", nil)
	pub.On("PublishAnalysisCompleted", mock.Anything, mock.MatchedBy(func(p kafka.AnalysisCompletedPayload) bool {
		return p.DocumentID == "cats" && p.Paragraphs == 2 && len(p.Topics) == 1 && p.Topics[0] == "cat"
	})).Return(nil)

	svc := NewService(Config{}, Deps{Source: source, Archive: archive, Publisher: pub})
	res, err := svc.Analyze(context.Background(), &Request{Object: "minio://docs/cats.json"})
	require.NoError(t, err)
	assert.Equal(t, "reports/x.json", res.ArchiveKey)

	source.AssertExpectations(t)
	archive.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAnalyze_SideEffectFailuresAreNotFatal(t *testing.T) {
	archive, pub := new(MockArchive), new(MockPublisher)
	archive.On("SaveReport", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))
	pub.On("PublishAnalysisCompleted", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := NewService(Config{}, Deps{Archive: archive, Publisher: pub})
	res, err := svc.Analyze(context.Background(), &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)
	assert.Empty(t, res.ArchiveKey)
}

func TestAnalyze_SourceError(t *testing.T) {
	source := new(MockSource)
	source.On("Load", mock.Anything, "missing.json").Return(nil, pkgerrors.NotFound("object not found"))

	svc := NewService(Config{}, Deps{Source: source})
	_, err := svc.Analyze(context.Background(), &Request{Object: "missing.json"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(Config{}, Deps{})
	_, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeAnalysisCancelled))
}

func newCache(t *testing.T) (*miniredis.Miniredis, redis.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, redis.NewRedisCache(client, nil)
}

func TestAnalyze_CachesByContentGenerationAndOptions(t *testing.T) {
	mr, cache := newCache(t)
	reg := cluster.NewRegistry()
	svc := NewService(Config{}, Deps{Registry: reg, Cache: cache})
	ctx := context.Background()

	first, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.Report.RunID, second.Report.RunID)
	assert.Equal(t, topicLemmas(first.Report), topicLemmas(second.Report))

	other, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument(), Options: coherence.Options{PronounVisible: true}})
	require.NoError(t, err)
	assert.False(t, other.Cached)
	assert.Len(t, mr.Keys(), 2)

	require.NoError(t, svc.ReplaceClusters(ctx, []cluster.Cluster{{Name: "feline", Forms: []string{"cat"}}}))
	assert.Empty(t, mr.Keys(), "registry edits evict cached reports")

	third, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, []string{"feline"}, topicLemmas(third.Report))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, reg.Generation(), third.Report.RegistryGeneration)
	assert.True(t, strings.HasSuffix(keys[0], fmt.Sprintf(":%d", third.Report.RegistryGeneration)),
		"the key and the report use the same registry generation")
}

func TestClustersAndTopics(t *testing.T) {
	svc := NewService(Config{}, Deps{})
	ctx := context.Background()

	require.NoError(t, svc.ReplaceClusters(ctx, []cluster.Cluster{
		{Name: "vehicle", Forms: []string{"car", "auto"}},
		{Name: "weather"},
	}))
	require.NoError(t, svc.SetTopics(ctx, []string{"engine", "fuel economy"}))

	f := cluster.Export(svc.Registry().Snapshot())
	require.Len(t, f.Clusters, 2)
	assert.Equal(t, []string{"engine", "fuel economy"}, f.Topics)
	assert.Equal(t, []string{"weather"}, svc.Registry().Snapshot().UndefinedClusters())

	err := svc.ReplaceClusters(ctx, []cluster.Cluster{{Name: ""}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeInvalidCluster))
}

func TestNotifyRegistryChanged_EvictsReports(t *testing.T) {
	mr, cache := newCache(t)
	reg := cluster.NewRegistry()
	svc := NewService(Config{}, Deps{Registry: reg, Cache: cache})
	ctx := context.Background()

	_, err := svc.Analyze(ctx, &Request{Document: testutil.CatDocument()})
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)

	require.NoError(t, reg.Replace([]cluster.Cluster{{Name: "feline", Forms: []string{"cat"}}}, nil))
	svc.NotifyRegistryChanged(ctx)
	assert.Empty(t, mr.Keys())
}
