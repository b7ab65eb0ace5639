package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hunghhdev/sqlcache/internal/store"
	"github.com/hunghhdev/sqlcache/internal/ttl"

	"github.com/gin-gonic/gin"
)

// PutEntryRequest represents the request payload for storing a value.
// Value is kept raw so an explicit JSON null (a cached nil) can be told
// apart from an absent field.
type PutEntryRequest struct {
	Value      json.RawMessage `json:"value"`
	TTLSeconds *int64          `json:"ttlSeconds"`
	Policy     string          `json:"policy"`
}

// BatchGetRequest represents the request payload for a batch lookup
type BatchGetRequest struct {
	Keys []string `json:"keys" binding:"required"`
}

// BatchPutRequest represents the request payload for a batch upsert
type BatchPutRequest struct {
	Entries    map[string]json.RawMessage `json:"entries" binding:"required"`
	TTLSeconds *int64                     `json:"ttlSeconds"`
	Policy     string                     `json:"policy"`
}

// RefreshTTLRequest represents the request payload for re-stamping a TTL
type RefreshTTLRequest struct {
	TTLSeconds int64 `json:"ttlSeconds" binding:"required"`
}

func respondStoreError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	for _, validation := range []error{
		store.ErrEmptyKey,
		store.ErrNilValue,
		store.ErrInvalidTTL,
		store.ErrInvalidPolicy,
		store.ErrEmptyPattern,
	} {
		if errors.Is(err, validation) {
			status = http.StatusBadRequest
			break
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// rawToValue converts a raw JSON body value into what the store expects:
// nil for an explicit JSON null, a decoded any otherwise.
func rawToValue(raw json.RawMessage) (any, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, false
	}
	if trimmed == "null" {
		return nil, true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

func parsePolicy(s string) ttl.Policy {
	if s == "" {
		return ttl.Default()
	}
	return ttl.Policy(strings.ToUpper(s))
}

func lookupBody(key string, res store.Lookup) (gin.H, error) {
	if res.Null {
		return gin.H{"key": key, "value": nil, "cachedNull": true}, nil
	}
	value, err := res.Value()
	if err != nil {
		return nil, err
	}
	return gin.H{"key": key, "value": value}, nil
}

// GetEntry handles GET /api/cache/:key
// Query param refresh (default true) controls sliding-TTL refresh.
func GetEntry(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		refresh := c.DefaultQuery("refresh", "true") != "false"

		res, err := st.Get(c.Request.Context(), key, refresh)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if !res.Found {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		body, err := lookupBody(key, res)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

// PutEntry handles PUT /api/cache/:key
func PutEntry(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		var req PutEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		value, ok := rawToValue(req.Value)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value is required (use null to cache a nil)"})
			return
		}

		var err error
		if req.TTLSeconds != nil {
			err = st.PutWithTTL(c.Request.Context(), key, value,
				time.Duration(*req.TTLSeconds)*time.Second, parsePolicy(req.Policy))
		} else {
			err = st.Put(c.Request.Context(), key, value)
		}
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// PutEntryIfAbsent handles POST /api/cache/:key/put-if-absent
// Responds 201 when this caller inserted, 200 with the resident value otherwise.
func PutEntryIfAbsent(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		var req PutEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		value, ok := rawToValue(req.Value)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value is required (use null to cache a nil)"})
			return
		}

		ctx := c.Request.Context()
		var (
			res      store.Lookup
			inserted bool
			err      error
		)
		if req.TTLSeconds != nil {
			res, inserted, err = st.PutIfAbsentTTL(ctx, key, value,
				time.Duration(*req.TTLSeconds)*time.Second, parsePolicy(req.Policy))
		} else {
			res, inserted, err = st.PutIfAbsent(ctx, key, value)
		}
		if err != nil {
			respondStoreError(c, err)
			return
		}

		if inserted {
			c.JSON(http.StatusCreated, gin.H{"inserted": true})
			return
		}
		if !res.Found {
			// The resident row was expired and lazily evicted underneath us.
			c.JSON(http.StatusOK, gin.H{"inserted": false})
			return
		}
		body, err := lookupBody(key, res)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		body["inserted"] = false
		c.JSON(http.StatusOK, body)
	}
}

// DeleteEntry handles DELETE /api/cache/:key (idempotent)
func DeleteEntry(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Evict(c.Request.Context(), c.Param("key")); err != nil {
			respondStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ClearCache handles DELETE /api/cache
func ClearCache(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Clear(c.Request.Context()); err != nil {
			respondStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ContainsEntry handles GET /api/cache/:key/exists without touching
// statistics or sliding timers.
func ContainsEntry(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		exists, err := st.ContainsKey(c.Request.Context(), c.Param("key"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "exists": exists})
	}
}

// GetEntryTTL handles GET /api/cache/:key/ttl
func GetEntryTTL(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		ctx := c.Request.Context()

		policy, exists, err := st.TTLPolicyOf(ctx, key)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		remaining, hasTTL, err := st.RemainingTTL(ctx, key)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		body := gin.H{"key": key, "policy": policy, "hasTTL": hasTTL}
		if hasTTL {
			body["remainingSeconds"] = int64(remaining.Seconds())
		}
		c.JSON(http.StatusOK, body)
	}
}

// RefreshEntryTTL handles POST /api/cache/:key/ttl
// Sets a new absolute TTL and re-stamps both timestamps.
func RefreshEntryTTL(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")

		var req RefreshTTLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttlSeconds is required"})
			return
		}

		existed, err := st.RefreshTTL(c.Request.Context(), key, time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if !existed {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GetKeys handles GET /api/keys?pattern=user:%
func GetKeys(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pattern := c.DefaultQuery("pattern", "%")
		keys, err := st.Keys(c.Request.Context(), pattern)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"keys": keys})
	}
}

// EvictByPattern handles DELETE /api/keys?pattern=user:%
func EvictByPattern(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pattern := c.Query("pattern")
		removed, err := st.EvictByPattern(c.Request.Context(), pattern)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

// BatchGet handles POST /api/cache/batch/get
// Batch lookups never refresh sliding TTLs.
func BatchGet(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BatchGetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keys is required"})
			return
		}

		results, err := st.GetAll(c.Request.Context(), req.Keys)
		if err != nil {
			respondStoreError(c, err)
			return
		}

		body := make(map[string]any, len(results))
		for key, res := range results {
			entry, err := lookupBody(key, res)
			if err != nil {
				respondStoreError(c, err)
				return
			}
			delete(entry, "key")
			body[key] = entry
		}
		c.JSON(http.StatusOK, gin.H{"results": body})
	}
}

// BatchPut handles POST /api/cache/batch/put
// One TTL and policy apply to every entry; the write is all-or-nothing.
func BatchPut(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BatchPutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entries is required"})
			return
		}

		entries := make(map[string]any, len(req.Entries))
		for key, raw := range req.Entries {
			value, ok := rawToValue(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for key " + key})
				return
			}
			entries[key] = value
		}

		var err error
		if req.TTLSeconds != nil {
			err = st.PutAllWithTTL(c.Request.Context(), entries,
				time.Duration(*req.TTLSeconds)*time.Second, parsePolicy(req.Policy))
		} else {
			err = st.PutAll(c.Request.Context(), entries)
		}
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// BatchEvict handles POST /api/cache/batch/evict
func BatchEvict(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BatchGetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keys is required"})
			return
		}

		removed, err := st.EvictAll(c.Request.Context(), req.Keys)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

// GetSize handles GET /api/size
// The count is served from a short-lived cache; see store.Size.
func GetSize(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		size, err := st.Size(c.Request.Context())
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"size": size})
	}
}

// GetStatistics handles GET /api/statistics
func GetStatistics(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := st.Statistics()
		c.JSON(http.StatusOK, gin.H{
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"puts":      stats.Puts,
			"evictions": stats.Evictions,
			"requests":  stats.Requests(),
			"hitRate":   stats.HitRate(),
			"missRate":  stats.MissRate(),
		})
	}
}

// ResetStatistics handles POST /api/statistics/reset
func ResetStatistics(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		st.ResetStatistics()
		c.Status(http.StatusNoContent)
	}
}

// Cleanup handles POST /api/cleanup, the on-demand version of the
// background sweep.
func Cleanup(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		removed, err := st.CleanupExpired(c.Request.Context())
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}
