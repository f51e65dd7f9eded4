package redis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/DiscourseLens/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	client *Client
	mock   redismock.ClientMock
	cache  Cache
	log    logging.Logger
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.log = logging.NewNopLogger()
	s.client = &Client{rdb: db, config: &Config{}, logger: s.log}
	s.cache = NewRedisCache(s.client, s.log, WithPrefix("test:"), WithJitter(false))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type cachedReport struct {
	DocumentID string   `json:"document_id"`
	Topics     []string `json:"topics"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := cachedReport{DocumentID: "doc-1", Topics: []string{"cat"}}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectGet("test:report:1").SetVal(string(bytes))

	var dest cachedReport
	err := s.cache.Get(context.Background(), "report:1", &dest)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:report:1").RedisNil()

	var dest cachedReport
	err := s.cache.Get(context.Background(), "report:1", &dest)

	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
	assert.Equal(s.T(), ErrCacheMiss, err)
}

func (s *CacheTestSuite) TestGet_Corrupt() {
	s.mock.ExpectGet("test:report:1").SetVal("{not json")

	var dest cachedReport
	err := s.cache.Get(context.Background(), "report:1", &dest)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)
	assert.NoError(s.T(), s.cache.Delete(context.Background(), "k1", "k2"))
}

func (s *CacheTestSuite) TestDelete_NoKeys() {
	assert.NoError(s.T(), s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestExists_True() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	exists, err := s.cache.Exists(context.Background(), "k1")
	assert.NoError(s.T(), err)
	assert.True(s.T(), exists)
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	val := cachedReport{DocumentID: "doc-1"}
	bytes, _ := json.Marshal(val)
	s.mock.ExpectGet("test:report:1").SetVal(string(bytes))

	called := false
	var dest cachedReport
	err := s.cache.GetOrSet(context.Background(), "report:1", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		called = true
		return val, nil
	})

	assert.NoError(s.T(), err)
	assert.False(s.T(), called)
	assert.Equal(s.T(), val, dest)
}

func (s *CacheTestSuite) TestClosedClient() {
	require.NoError(s.T(), s.client.Close())

	var dest cachedReport
	err := s.cache.Get(context.Background(), "report:1", &dest)
	assert.True(s.T(), pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
	assert.ErrorIs(s.T(), err, ErrClientClosed)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func newMiniCache(t *testing.T) (*miniredis.Miniredis, Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, nil, WithDefaultTTL(time.Hour))
}

func TestCache_SetUsesPrefixAndTTL(t *testing.T) {
	mr, cache := newMiniCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "report:1", cachedReport{DocumentID: "doc-1"}, 0))
	assert.True(t, mr.Exists("dlens:report:1"))
	ttl := mr.TTL("dlens:report:1")
	assert.InDelta(t, float64(time.Hour), float64(ttl), float64(6*time.Minute))
}

func TestCache_GetOrSetLoadsOnce(t *testing.T) {
	_, cache := newMiniCache(t)
	ctx := context.Background()

	var calls int32
	loader := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return cachedReport{DocumentID: "doc-1", Topics: []string{"cat"}}, nil
	}

	var wg sync.WaitGroup
	results := make([]cachedReport, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, cache.GetOrSet(ctx, "report:1", &results[i], 0, loader))
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	for _, r := range results {
		assert.Equal(t, []string{"cat"}, r.Topics)
	}

	var again cachedReport
	require.NoError(t, cache.GetOrSet(ctx, "report:1", &again, 0, func(ctx context.Context) (interface{}, error) {
		t.Fatal("loader called on a warm cache")
		return nil, nil
	}))
	assert.Equal(t, "doc-1", again.DocumentID)
}

func TestCache_GetOrSetLoaderError(t *testing.T) {
	mr, cache := newMiniCache(t)
	boom := pkgerrors.New(pkgerrors.ErrCodeInternal, "boom")

	var dest cachedReport
	err := cache.GetOrSet(context.Background(), "report:1", &dest, 0, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.Equal(t, boom, err)
	assert.False(t, mr.Exists("dlens:report:1"))
}

func TestCache_DeleteByPrefix(t *testing.T) {
	mr, cache := newMiniCache(t)
	ctx := context.Background()
	for _, k := range []string{"report:a", "report:b", "report:c", "clusters"} {
		require.NoError(t, cache.Set(ctx, k, cachedReport{}, 0))
	}

	n, err := cache.DeleteByPrefix(ctx, "report:")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, mr.Exists("dlens:clusters"))
	assert.False(t, mr.Exists("dlens:report:a"))
}
