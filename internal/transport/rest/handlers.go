package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/model"
)

// Handler adapts the Engine Facade's five operations to HTTP.
type Handler struct {
	facade *engine.Facade
	log    logger.Logger
}

// NewHandler creates a Handler bound to facade.
func NewHandler(facade *engine.Facade, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Global()
	}
	return &Handler{facade: facade, log: log}
}

type storeRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Type     string   `json:"type"`
	Priority string   `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type storeResponse struct {
	ID           string `json:"id"`
	HasEmbedding bool   `json:"has_embedding"`
}

// Store handles POST /v1/memories.
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := getRequestID(ctx)

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", reqID)
		return
	}

	id, hasEmbedding, err := h.facade.Store(ctx, engine.StoreInput{
		Title:    req.Title,
		Content:  req.Content,
		Type:     model.MemoryType(req.Type),
		Priority: model.Priority(req.Priority),
		Tags:     req.Tags,
	})
	if err != nil && id == "" {
		writeEngineError(w, err, reqID)
		return
	}
	if err != nil {
		// DegradedWrite: the record was persisted even though indexing failed.
		h.log.Warn("store succeeded with degraded indexing", "id", id, "error", err)
		writeJSON(w, http.StatusAccepted, storeResponse{ID: id, HasEmbedding: hasEmbedding})
		return
	}

	writeJSON(w, http.StatusCreated, storeResponse{ID: id, HasEmbedding: hasEmbedding})
}

// Get handles GET /v1/memories/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := getRequestID(ctx)
	id := chi.URLParam(r, "id")

	mem, err := h.facade.Get(ctx, id)
	if err != nil {
		writeEngineError(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

// Delete handles DELETE /v1/memories/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := getRequestID(ctx)
	id := chi.URLParam(r, "id")

	removed, err := h.facade.Delete(ctx, id)
	if err != nil {
		writeEngineError(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: removed})
}

type searchRequest struct {
	Text      string   `json:"text"`
	Limit     int      `json:"limit"`
	Types     []string `json:"types,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	IndexOnly bool     `json:"index_only,omitempty"`
}

// Search handles POST /v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := getRequestID(ctx)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", reqID)
		return
	}

	types := make([]model.MemoryType, 0, len(req.Types))
	for _, t := range req.Types {
		types = append(types, model.MemoryType(t))
	}

	q := model.Query{
		Text:      req.Text,
		Limit:     req.Limit,
		IndexOnly: req.IndexOnly,
		Filter: model.Filter{
			Types: types,
			Tags:  req.Tags,
		},
	}

	resp, err := h.facade.Search(ctx, q)
	if err != nil {
		writeEngineError(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := getRequestID(ctx)

	stats, err := h.facade.Stats(ctx)
	if err != nil {
		writeEngineError(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
