package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haneul-ai/recall/internal/embedder"
	"github.com/haneul-ai/recall/internal/engine"
	"github.com/haneul-ai/recall/internal/lexical"
	"github.com/haneul-ai/recall/internal/logger"
	"github.com/haneul-ai/recall/internal/metrics"
	"github.com/haneul-ai/recall/internal/record"
	"github.com/haneul-ai/recall/internal/vecindex"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := record.Open(record.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := engine.DefaultConfig(t.TempDir())
	cfg.VectorDimension = 8
	vec := vecindex.New(cfg.VectorDimension, cfg.HNSW)
	lex := lexical.NewWithParams(cfg.BM25K1, cfg.BM25B)
	mock := embedder.NewMock(cfg.VectorDimension)

	facade := engine.New(cfg, store, vec, lex, mock, logger.Global(), metrics.NoOpManager())

	restCfg := DefaultConfig()
	restCfg.RateLimit = 1000
	restCfg.Burst = 1000
	return NewRouter(restCfg, facade, logger.Global())
}

func TestStoreGetDeleteLifecycle(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(storeRequest{Title: "api test", Content: "body text", Type: "fact"})
	req := httptest.NewRequest(http.MethodPost, "/v1/memories/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var stored storeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.NotEmpty(t, stored.ID)

	getReq := httptest.NewRequest(http.MethodGet, "/v1/memories/"+stored.ID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/memories/"+stored.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	var deleted deleteResponse
	require.NoError(t, json.Unmarshal(delRec.Body.Bytes(), &deleted))
	require.True(t, deleted.Deleted)

	missingReq := httptest.NewRequest(http.MethodGet, "/v1/memories/"+stored.ID, nil)
	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, missingReq)
	require.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestStoreRejectsInvalidType(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(storeRequest{Title: "bad", Content: "x", Type: "nonsense"})
	req := httptest.NewRequest(http.MethodPost, "/v1/memories/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchReturnsStoredMemory(t *testing.T) {
	router := newTestRouter(t)

	storeBody, _ := json.Marshal(storeRequest{Title: "searchable", Content: "hybrid retrieval content", Type: "fact"})
	storeReq := httptest.NewRequest(http.MethodPost, "/v1/memories/", bytes.NewReader(storeBody))
	storeRec := httptest.NewRecorder()
	router.ServeHTTP(storeRec, storeReq)
	require.Equal(t, http.StatusCreated, storeRec.Code)

	searchBody, _ := json.Marshal(searchRequest{Text: "hybrid retrieval", Limit: 5})
	searchReq := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(searchBody))
	searchRec := httptest.NewRecorder()
	router.ServeHTTP(searchRec, searchReq)
	require.Equal(t, http.StatusOK, searchRec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(searchRec.Body.Bytes(), &body))
	hits, ok := body["Hits"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, hits)
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
