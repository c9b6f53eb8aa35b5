package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	mu    sync.Mutex
	calls []executor.Request
	delay time.Duration
	err   error
}

func (s *stubExecutor) Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &executor.SearchResult{
		Collection: req.Collection,
		Query:      req.Query,
		Total:      1,
		Results:    []session.ScoredDocument{{Score: 1}},
	}, nil
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string][]byte{}
	return n, nil
}

var searchCfg = config.SearchConfig{DefaultTake: 10, MaxTake: 50}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchParsesParameters(t *testing.T) {
	exec := &stubExecutor{}
	h := New(exec, nil, nil, searchCfg)

	rec := get(h.Search, "/api/v1/search?collection=fruit&q=title:apple&skip=5&take=500&select=title,+colour")
	require.Equal(t, http.StatusOK, rec.Code)

	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Total)

	require.Len(t, exec.calls, 1)
	got := exec.calls[0]
	assert.Equal(t, "fruit", got.Collection)
	assert.Equal(t, "title:apple", got.Query)
	assert.Equal(t, 5, got.Skip)
	assert.Equal(t, 50, got.Take, "take is capped")
	assert.Equal(t, []string{"title", "colour"}, got.Select)
}

func TestSearchValidatesParameters(t *testing.T) {
	h := New(&stubExecutor{}, nil, nil, searchCfg)
	for _, target := range []string{
		"/api/v1/search?q=apple",
		"/api/v1/search?collection=fruit",
		"/api/v1/search?collection=fruit&q=apple&skip=-1",
		"/api/v1/search?collection=fruit&q=apple&take=0",
		"/api/v1/search?collection=fruit&q=apple&take=x",
	} {
		assert.Equal(t, http.StatusBadRequest, get(h.Search, target).Code, target)
	}
}

func TestSearchMapsErrors(t *testing.T) {
	h := New(&stubExecutor{err: apperrors.ErrInvalidInput}, nil, nil, searchCfg)
	assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search?collection=fruit&q=(apple").Code)

	slow := New(&stubExecutor{delay: time.Second}, nil, nil, config.SearchConfig{Timeout: 10 * time.Millisecond})
	assert.Equal(t, http.StatusServiceUnavailable, get(slow.Search, "/api/v1/search?collection=fruit&q=apple").Code)
}

func TestSearchUsesCache(t *testing.T) {
	exec := &stubExecutor{}
	qc := cache.New(&mapStore{data: map[string][]byte{}}, config.RedisConfig{}, nil)
	h := New(exec, qc, nil, searchCfg)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?collection=fruit&q=apple").Code)
	}
	assert.Len(t, exec.calls, 1)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(get(h.CacheStats, "/api/v1/cache/stats").Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
	assert.Equal(t, "closed", stats["breaker"])

	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate?collection=fruit", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	get(h.Search, "/api/v1/search?collection=fruit&q=apple")
	assert.Len(t, exec.calls, 2)
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h := New(&stubExecutor{}, nil, nil, searchCfg)
	assert.Contains(t, get(h.CacheStats, "/api/v1/cache/stats").Body.String(), "disabled")

	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
