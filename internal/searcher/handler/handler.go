package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/resilience"
)

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
}

type Handler struct {
	executor    SearchExecutor
	cache       *cache.QueryCache
	metrics     *metrics.Metrics
	defaultTake int
	maxTake     int
	timeout     time.Duration
	logger      *slog.Logger
}

// New builds the search handler. queryCache may be nil to disable caching.
func New(exec SearchExecutor, queryCache *cache.QueryCache, met *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		executor:    exec,
		cache:       queryCache,
		metrics:     met,
		defaultTake: cfg.DefaultTake,
		maxTake:     cfg.MaxTake,
		timeout:     cfg.Timeout,
		logger:      slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?collection=&q=&skip=&take=&select=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	err = resilience.WithTimeout(ctx, h.timeout, "search", func(ctx context.Context) error {
		var err error
		if h.cache != nil {
			result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
				return h.executor.Execute(ctx, req)
			})
			return err
		}
		result, err = h.executor.Execute(ctx, req)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperrors.ErrTimeout) {
		err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search execution failed",
			"collection", req.Collection,
			"query", req.Query,
			"status_code", status,
			"error", err,
		)
		message := "search failed"
		if status == http.StatusBadRequest {
			message = err.Error()
		}
		h.writeError(w, status, message)
		return
	}

	if cacheHit {
		h.metrics.ObserveSearch("hit", result.Total, time.Since(start), nil)
	}
	log.Info("search completed",
		"collection", req.Collection,
		"query", req.Query,
		"total", result.Total,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseRequest(r *http.Request) (executor.Request, error) {
	params := r.URL.Query()
	req := executor.Request{
		Collection: strings.TrimSpace(params.Get("collection")),
		Query:      params.Get("q"),
		Take:       h.defaultTake,
	}
	if req.Collection == "" {
		return req, errors.New("query parameter 'collection' is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, errors.New("query parameter 'q' is required")
	}
	if s := params.Get("skip"); s != "" {
		skip, err := strconv.Atoi(s)
		if err != nil || skip < 0 {
			return req, errors.New("skip must be a non-negative integer")
		}
		req.Skip = skip
	}
	if s := params.Get("take"); s != "" {
		take, err := strconv.Atoi(s)
		if err != nil || take < 1 {
			return req, errors.New("take must be a positive integer")
		}
		req.Take = take
	}
	if h.maxTake > 0 && (req.Take <= 0 || req.Take > h.maxTake) {
		req.Take = h.maxTake
	}
	if s := params.Get("select"); s != "" {
		for _, f := range strings.Split(s, ",") {
			if f = strings.TrimSpace(f); f != "" {
				req.Select = append(req.Select, f)
			}
		}
	}
	return req, nil
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

// CacheInvalidate drops cached results of ?collection=, or all of them
// when the parameter is absent.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	var collectionID uint64
	if c := strings.TrimSpace(r.URL.Query().Get("collection")); c != "" {
		collectionID = storage.CollectionID(c)
	}
	deleted, err := h.cache.Invalidate(r.Context(), collectionID)
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
