package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hunghhdev/sqlcache/internal/store"
	"github.com/hunghhdev/sqlcache/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// newCacheRouter wires every cache handler against a fresh in-memory store,
// without the auth middleware; that is covered separately.
func newCacheRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	st := store.New(db, store.Options{AutoCreateTable: true, AllowNullValues: true})
	t.Cleanup(st.Shutdown)

	router := gin.New()
	router.GET("/api/cache/:key", GetEntry(st))
	router.PUT("/api/cache/:key", PutEntry(st))
	router.DELETE("/api/cache/:key", DeleteEntry(st))
	router.GET("/api/cache/:key/exists", ContainsEntry(st))
	router.GET("/api/cache/:key/ttl", GetEntryTTL(st))
	router.POST("/api/cache/:key/ttl", RefreshEntryTTL(st))
	router.POST("/api/cache/:key/put-if-absent", PutEntryIfAbsent(st))
	router.DELETE("/api/cache", ClearCache(st))
	router.GET("/api/keys", GetKeys(st))
	router.DELETE("/api/keys", EvictByPattern(st))
	router.GET("/api/size", GetSize(st))
	router.POST("/api/cleanup", Cleanup(st))
	router.POST("/api/cache/batch/get", BatchGet(st))
	router.POST("/api/cache/batch/put", BatchPut(st))
	router.POST("/api/cache/batch/evict", BatchEvict(st))
	router.GET("/api/statistics", GetStatistics(st))
	router.POST("/api/statistics/reset", ResetStatistics(st))
	return router, st
}

func perform(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPutThenGetEntry(t *testing.T) {
	router, _ := newCacheRouter(t)

	w := perform(t, router, http.MethodPut, "/api/cache/user:1", gin.H{
		"value": gin.H{"name": "alice"},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = perform(t, router, http.MethodGet, "/api/cache/user:1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, "user:1", body["key"])
	require.Equal(t, "alice", body["value"].(map[string]any)["name"])
}

func TestGetEntry_Missing(t *testing.T) {
	router, _ := newCacheRouter(t)

	w := perform(t, router, http.MethodGet, "/api/cache/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutEntry_ExplicitNull(t *testing.T) {
	router, _ := newCacheRouter(t)

	w := perform(t, router, http.MethodPut, "/api/cache/absent", json.RawMessage(`{"value":null}`))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = perform(t, router, http.MethodGet, "/api/cache/absent", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, true, body["cachedNull"])
	require.Nil(t, body["value"])
}

func TestPutEntry_MissingValue(t *testing.T) {
	router, _ := newCacheRouter(t)

	w := perform(t, router, http.MethodPut, "/api/cache/k", gin.H{"ttlSeconds": 10})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutEntry_InvalidTTLRejected(t *testing.T) {
	router, _ := newCacheRouter(t)

	ttlSeconds := int64(-1)
	w := perform(t, router, http.MethodPut, "/api/cache/k", PutEntryRequest{
		Value:      json.RawMessage(`"v"`),
		TTLSeconds: &ttlSeconds,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(t, router, http.MethodPut, "/api/cache/k", json.RawMessage(`{"value":"v","ttlSeconds":10,"policy":"SOMETIMES"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutEntryIfAbsent(t *testing.T) {
	router, _ := newCacheRouter(t)

	w := perform(t, router, http.MethodPost, "/api/cache/k/put-if-absent", gin.H{"value": "first"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, true, decodeBody(t, w)["inserted"])

	w = perform(t, router, http.MethodPost, "/api/cache/k/put-if-absent", gin.H{"value": "second"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, false, body["inserted"])
	require.Equal(t, "first", body["value"])
}

func TestDeleteEntry_Idempotent(t *testing.T) {
	router, _ := newCacheRouter(t)

	perform(t, router, http.MethodPut, "/api/cache/k", gin.H{"value": "v"})

	w := perform(t, router, http.MethodDelete, "/api/cache/k", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	// Deleting an absent key is still a success.
	w = perform(t, router, http.MethodDelete, "/api/cache/k", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = perform(t, router, http.MethodGet, "/api/cache/k/exists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, decodeBody(t, w)["exists"])
}

func TestEntryTTLEndpoints(t *testing.T) {
	router, _ := newCacheRouter(t)

	perform(t, router, http.MethodPut, "/api/cache/k", gin.H{"value": "v", "ttlSeconds": 60, "policy": "sliding"})

	w := perform(t, router, http.MethodGet, "/api/cache/k/ttl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "SLIDING", body["policy"])
	require.Equal(t, true, body["hasTTL"])
	require.InDelta(t, 60, body["remainingSeconds"], 2)

	// Re-stamping forces the policy to ABSOLUTE.
	w = perform(t, router, http.MethodPost, "/api/cache/k/ttl", gin.H{"ttlSeconds": 120})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = perform(t, router, http.MethodGet, "/api/cache/k/ttl", nil)
	body = decodeBody(t, w)
	require.Equal(t, "ABSOLUTE", body["policy"])
	require.InDelta(t, 120, body["remainingSeconds"], 2)

	w = perform(t, router, http.MethodGet, "/api/cache/missing/ttl", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = perform(t, router, http.MethodPost, "/api/cache/missing/ttl", gin.H{"ttlSeconds": 10})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestKeysAndPatternEviction(t *testing.T) {
	router, _ := newCacheRouter(t)

	for _, k := range []string{"user:1", "user:2", "order:1"} {
		perform(t, router, http.MethodPut, "/api/cache/"+k, gin.H{"value": k})
	}

	w := perform(t, router, http.MethodGet, "/api/keys?pattern=user:%25", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["keys"], 2)

	w = perform(t, router, http.MethodDelete, "/api/keys?pattern=user:%25", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, decodeBody(t, w)["removed"])

	// Empty pattern on eviction is a client error.
	w = perform(t, router, http.MethodDelete, "/api/keys", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// The listing default matches everything still present.
	w = perform(t, router, http.MethodGet, "/api/keys", nil)
	require.Len(t, decodeBody(t, w)["keys"], 1)
}

func TestBatchEndpoints(t *testing.T) {
	router, _ := newCacheRouter(t)

	w := perform(t, router, http.MethodPost, "/api/cache/batch/put", gin.H{
		"entries": gin.H{"a": 1, "b": "two", "n": nil},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = perform(t, router, http.MethodPost, "/api/cache/batch/get", gin.H{
		"keys": []string{"a", "b", "n", "missing"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	results := decodeBody(t, w)["results"].(map[string]any)
	require.Len(t, results, 3)
	require.EqualValues(t, 1, results["a"].(map[string]any)["value"])
	require.Equal(t, true, results["n"].(map[string]any)["cachedNull"])
	require.NotContains(t, results, "missing")

	w = perform(t, router, http.MethodPost, "/api/cache/batch/evict", gin.H{
		"keys": []string{"a", "n", "missing"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, decodeBody(t, w)["removed"])
}

func TestSizeClearAndStatistics(t *testing.T) {
	router, _ := newCacheRouter(t)

	perform(t, router, http.MethodPost, "/api/statistics/reset", nil)
	for _, k := range []string{"a", "b"} {
		perform(t, router, http.MethodPut, "/api/cache/"+k, gin.H{"value": k})
	}
	perform(t, router, http.MethodGet, "/api/cache/a", nil)       // hit
	perform(t, router, http.MethodGet, "/api/cache/missing", nil) // miss

	w := perform(t, router, http.MethodGet, "/api/size", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, decodeBody(t, w)["size"])

	w = perform(t, router, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(t, w)
	require.EqualValues(t, 1, stats["hits"])
	require.EqualValues(t, 1, stats["misses"])
	require.EqualValues(t, 2, stats["puts"])
	require.EqualValues(t, 2, stats["requests"])
	require.InDelta(t, 0.5, stats["hitRate"], 1e-9)

	w = perform(t, router, http.MethodDelete, "/api/cache", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = perform(t, router, http.MethodGet, "/api/statistics", nil)
	require.EqualValues(t, 2, decodeBody(t, w)["evictions"])

	w = perform(t, router, http.MethodPost, "/api/statistics/reset", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = perform(t, router, http.MethodGet, "/api/statistics", nil)
	require.EqualValues(t, 0, decodeBody(t, w)["requests"])
}

func TestCleanupEndpoint(t *testing.T) {
	router, _ := newCacheRouter(t)

	// Nothing to sweep on a fresh cache.
	w := perform(t, router, http.MethodPost, "/api/cleanup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 0, decodeBody(t, w)["removed"])
}
