package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/logger"
)

const maxBodyBytes = 32 << 20

type Ingester interface {
	Ingest(ctx context.Context, collection string, docs []map[string]any) (*ingestion.IngestResponse, error)
}

type Handler struct {
	publisher Ingester
	logger    *slog.Logger
}

func New(pub Ingester) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest serves POST /api/v1/collections/{collection}/documents. The body
// is {"documents": [...]}, a bare array, or NDJSON when sent as
// application/x-ndjson.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	collection := r.PathValue("collection")

	docs, err := ingestion.DecodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes), r.Header.Get("Content-Type"))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngest(collection, docs); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, collection, docs)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"collection", collection,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("documents accepted",
		"collection", collection,
		"count", resp.Accepted,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
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
