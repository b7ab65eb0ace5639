package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hunghhdev/sqlcache/internal/codec"
	"github.com/hunghhdev/sqlcache/internal/models"
	"github.com/hunghhdev/sqlcache/internal/ttl"
)

// Liveness predicates shared by size, containsKey, keys and the sweep.
// Timestamps are unix milliseconds, so TTL arithmetic stays integer-only
// and runs unchanged on every gorm dialect. Rows with an unknown policy
// string are treated as ABSOLUTE, matching ttl.ParsePolicy.
const (
	liveWhere = "(ttl_seconds IS NULL" +
		" OR (ttl_policy = 'SLIDING' AND last_accessed + ttl_seconds * 1000 > ?)" +
		" OR (ttl_policy <> 'SLIDING' AND updated_at + ttl_seconds * 1000 > ?))"

	expiredWhere = "ttl_seconds IS NOT NULL" +
		" AND ((ttl_policy = 'SLIDING' AND last_accessed + ttl_seconds * 1000 <= ?)" +
		" OR (ttl_policy <> 'SLIDING' AND updated_at + ttl_seconds * 1000 <= ?))"
)

// sizeCacheWindow is how long a computed Size() result is served from
// cache. Mutations invalidate it immediately, so a caller's own write is
// always reflected by their next Size() call; growth caused by other
// writers may lag by up to this window.
const sizeCacheWindow = 5 * time.Second

// defaultCleanupInterval matches the original five-minute sweep cadence.
const defaultCleanupInterval = 5 * time.Minute

// Options configures a Store.
type Options struct {
	// AutoCreateTable provisions the cache table and its indexes on first
	// use. Disable it when the schema is managed externally.
	AutoCreateTable bool

	// EnableBackgroundCleanup starts a goroutine that periodically deletes
	// expired rows. Without it, expired rows are only removed lazily on
	// read or by explicit CleanupExpired calls.
	EnableBackgroundCleanup bool

	// CleanupInterval is the sweep cadence; zero means five minutes.
	CleanupInterval time.Duration

	// AllowNullValues lets callers cache nil, stored as a reserved marker
	// payload and returned as the codec.Null sentinel. When false, a nil
	// value is a validation error.
	AllowNullValues bool

	// Listeners are notified after successful mutations.
	Listeners []Listener
}

// DefaultOptions returns the options New uses when given a zero value.
func DefaultOptions() Options {
	return Options{
		AutoCreateTable: true,
		CleanupInterval: defaultCleanupInterval,
	}
}

// Lookup is the result of a read. Found and Null together disambiguate
// the three outcomes: a present value, a cached nil, and a miss.
type Lookup struct {
	Found   bool
	Null    bool
	Payload []byte
}

// Decode unmarshals the payload into out. It fails on a miss or on a
// cached nil; callers check Found and Null first.
func (l Lookup) Decode(out any) error {
	if !l.Found {
		return errors.New("no cached value to decode")
	}
	if l.Null {
		return errors.New("cached value is nil")
	}
	return codec.Decode(l.Payload, out)
}

// Value decodes the payload into a generic any, or returns the codec.Null
// sentinel for a cached nil.
func (l Lookup) Value() (any, error) {
	if l.Null {
		return codec.Null, nil
	}
	var v any
	if err := l.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Store is a key-value cache backed by a relational table. Storage,
// expiration enforcement and write atomicity are delegated to the
// database; the Store implements TTL policy, null-value caching,
// statistics, events and the size cache on top.
//
// All methods are safe for concurrent use.
type Store struct {
	db   *gorm.DB
	opts Options

	stats  counters
	events dispatcher

	initOnce sync.Once
	initErr  error

	sweeper *sweeper

	// Size cache: -1 means invalidated. sizeStamp is the unix-nano time
	// the cached value was computed. singleflight collapses concurrent
	// recomputations into one COUNT query.
	cachedSize atomic.Int64
	sizeStamp  atomic.Int64
	sizeGroup  singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Store on top of db. The schema is provisioned lazily on
// first use when opts.AutoCreateTable is set; the background sweeper, if
// enabled, starts immediately.
func New(db *gorm.DB, opts Options) *Store {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	s := &Store{
		db:   db,
		opts: opts,
		now:  time.Now,
	}
	s.cachedSize.Store(-1)
	for _, l := range opts.Listeners {
		s.events.add(l)
	}
	if opts.EnableBackgroundCleanup {
		s.sweeper = newSweeper(opts.CleanupInterval)
		go s.sweeper.run(s)
	}
	return s
}

// AddListener registers a mutation listener.
func (s *Store) AddListener(l Listener) {
	s.events.add(l)
}

// Shutdown stops the background sweeper, waiting briefly for an in-flight
// pass. It is a no-op when cleanup was never enabled and safe to call
// repeatedly.
func (s *Store) Shutdown() {
	if s.sweeper != nil {
		s.sweeper.shutdown()
	}
}

// init provisions the schema at most once per Store. Concurrent first
// callers block until the winner finishes; a create-if-not-exists check
// alone could race on some backends.
func (s *Store) init() error {
	s.initOnce.Do(func() {
		if !s.opts.AutoCreateTable {
			return
		}
		if err := s.db.AutoMigrate(&models.CacheEntry{}); err != nil {
			s.initErr = opErr("init", "", err)
			return
		}
		// Partial indexes for the two expiration predicates. The primary
		// key already serves pattern scans on key.
		for _, ddl := range []string{
			"CREATE INDEX IF NOT EXISTS idx_cache_entries_ttl ON cache_entries (updated_at, ttl_seconds) WHERE ttl_seconds IS NOT NULL",
			"CREATE INDEX IF NOT EXISTS idx_cache_entries_sliding ON cache_entries (ttl_policy, last_accessed) WHERE ttl_policy = 'SLIDING'",
		} {
			if err := s.db.Exec(ddl).Error; err != nil {
				s.initErr = opErr("init", "", err)
				return
			}
		}
	})
	return s.initErr
}

func (s *Store) invalidateSizeCache() {
	s.cachedSize.Store(-1)
}

// Get fetches the value for key. A missing or expired row is a miss; an
// expired row is additionally removed best-effort. When refresh is true
// and the entry uses sliding TTL, its last-accessed timestamp is advanced
// so the entry stays live; a failure of that touch write is logged, never
// propagated.
func (s *Store) Get(ctx context.Context, key string, refresh bool) (Lookup, error) {
	if key == "" {
		return Lookup{}, opErr("get", key, ErrEmptyKey)
	}
	if err := s.init(); err != nil {
		return Lookup{}, err
	}

	var entry models.CacheEntry
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Take(&entry, "key = ?", key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.stats.misses.Add(1)
		return Lookup{}, nil
	}
	if err != nil {
		return Lookup{}, opErr("get", key, err)
	}

	now := s.now()
	policy := ttl.ParsePolicy(entry.TTLPolicy)
	if ttl.IsExpired(time.UnixMilli(entry.UpdatedAt), time.UnixMilli(entry.LastAccessed), entry.TTLSeconds, policy, now) {
		// Lazy eviction is best-effort: the read already decided "miss".
		if err := s.Evict(ctx, key); err != nil {
			log.Printf("failed to evict expired key %q: %v", key, err)
		}
		s.stats.misses.Add(1)
		return Lookup{}, nil
	}

	if refresh && policy == ttl.Sliding && entry.TTLSeconds != nil {
		if err := s.touch(ctx, key, now); err != nil {
			// A stale refresh timestamp is not a correctness problem.
			log.Printf("failed to refresh last_accessed for key %q: %v", key, err)
		}
	}

	s.stats.hits.Add(1)
	if s.opts.AllowNullValues && codec.IsNullPayload(entry.Value) {
		return Lookup{Found: true, Null: true}, nil
	}
	return Lookup{Found: true, Payload: entry.Value}, nil
}

func (s *Store) touch(ctx context.Context, key string, now time.Time) error {
	return withRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Model(&models.CacheEntry{}).
			Where("key = ?", key).
			Update("last_accessed", now.UnixMilli()).Error
	})
}

// Put stores a permanent entry (no TTL), inserting or fully replacing the
// row for key.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	return s.put(ctx, "put", key, value, nil, ttl.Default())
}

// PutWithTTL stores an entry that expires per the given policy. The TTL
// is truncated to whole seconds and must be positive.
func (s *Store) PutWithTTL(ctx context.Context, key string, value any, d time.Duration, policy ttl.Policy) error {
	ttlSeconds, err := validateTTL("put", key, d, policy)
	if err != nil {
		return err
	}
	return s.put(ctx, "put", key, value, &ttlSeconds, policy)
}

func (s *Store) put(ctx context.Context, op, key string, value any, ttlSeconds *int64, policy ttl.Policy) error {
	if key == "" {
		return opErr(op, key, ErrEmptyKey)
	}
	payload, err := s.encode(op, key, value)
	if err != nil {
		return err
	}
	if err := s.init(); err != nil {
		return err
	}

	nowMs := s.now().UnixMilli()
	entry := models.CacheEntry{
		Key:          key,
		Value:        payload,
		UpdatedAt:    nowMs,
		TTLSeconds:   ttlSeconds,
		TTLPolicy:    string(policy),
		LastAccessed: nowMs,
	}
	err = withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "ttl_seconds", "ttl_policy", "last_accessed"}),
		}).Create(&entry).Error
	})
	if err != nil {
		return opErr(op, key, err)
	}

	s.stats.puts.Add(1)
	s.invalidateSizeCache()
	s.events.firePut(key, value)
	return nil
}

// PutIfAbsent atomically inserts a permanent entry if key is absent.
// The insert is a single conditional write, so exactly one of any set of
// racing callers observes inserted=true; the rest get the winner's value
// with its TTL and timers untouched.
//
// When the resident row has already expired, the read-back lazily evicts
// it and reports inserted=false with an empty Lookup.
func (s *Store) PutIfAbsent(ctx context.Context, key string, value any) (Lookup, bool, error) {
	return s.putIfAbsent(ctx, key, value, nil, ttl.Default())
}

// PutIfAbsentTTL is PutIfAbsent with an expiring entry.
func (s *Store) PutIfAbsentTTL(ctx context.Context, key string, value any, d time.Duration, policy ttl.Policy) (Lookup, bool, error) {
	ttlSeconds, err := validateTTL("putIfAbsent", key, d, policy)
	if err != nil {
		return Lookup{}, false, err
	}
	return s.putIfAbsent(ctx, key, value, &ttlSeconds, policy)
}

func (s *Store) putIfAbsent(ctx context.Context, key string, value any, ttlSeconds *int64, policy ttl.Policy) (Lookup, bool, error) {
	if key == "" {
		return Lookup{}, false, opErr("putIfAbsent", key, ErrEmptyKey)
	}
	payload, err := s.encode("putIfAbsent", key, value)
	if err != nil {
		return Lookup{}, false, err
	}
	if err := s.init(); err != nil {
		return Lookup{}, false, err
	}

	nowMs := s.now().UnixMilli()
	entry := models.CacheEntry{
		Key:          key,
		Value:        payload,
		UpdatedAt:    nowMs,
		TTLSeconds:   ttlSeconds,
		TTLPolicy:    string(policy),
		LastAccessed: nowMs,
	}
	var inserted bool
	err = withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&entry)
		inserted = tx.RowsAffected > 0
		return tx.Error
	})
	if err != nil {
		return Lookup{}, false, opErr("putIfAbsent", key, err)
	}

	if inserted {
		s.stats.puts.Add(1)
		s.invalidateSizeCache()
		return Lookup{}, true, nil
	}
	// Lost the race or the key was already resident: report the winner's
	// value without refreshing its timers.
	existing, err := s.Get(ctx, key, false)
	return existing, false, err
}

// Evict removes a key. Absence is not an error; an event fires only when
// a row was actually deleted.
func (s *Store) Evict(ctx context.Context, key string) error {
	if key == "" {
		return opErr("evict", key, ErrEmptyKey)
	}
	if err := s.init(); err != nil {
		return err
	}

	var deleted int64
	err := withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).Delete(&models.CacheEntry{}, "key = ?", key)
		deleted = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return opErr("evict", key, err)
	}
	if deleted > 0 {
		s.stats.evictions.Add(1)
		s.invalidateSizeCache()
		s.events.fireEvict(key)
	}
	return nil
}

// Clear removes every entry. Each removed row counts as an eviction; the
// clear event fires once regardless of row count.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}

	var deleted int64
	err := withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.CacheEntry{})
		deleted = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return opErr("clear", "", err)
	}
	if deleted > 0 {
		s.stats.evictions.Add(deleted)
	}
	s.invalidateSizeCache()
	s.events.fireClear()
	return nil
}

// Size returns the number of live entries. The count is a full scan, so
// results are cached for a short window; any mutation invalidates the
// cache immediately. Size is eventually consistent within the window,
// except that a caller's own preceding mutation is always reflected.
func (s *Store) Size(ctx context.Context) (int64, error) {
	if err := s.init(); err != nil {
		return 0, err
	}

	if cached := s.cachedSize.Load(); cached >= 0 {
		if s.now().Sub(time.Unix(0, s.sizeStamp.Load())) < sizeCacheWindow {
			return cached, nil
		}
	}

	v, err, _ := s.sizeGroup.Do("size", func() (any, error) {
		var count int64
		nowMs := s.now().UnixMilli()
		err := withRetry(ctx, func() error {
			return s.db.WithContext(ctx).
				Model(&models.CacheEntry{}).
				Where(liveWhere, nowMs, nowMs).
				Count(&count).Error
		})
		if err != nil {
			return int64(0), opErr("size", "", err)
		}
		s.cachedSize.Store(count)
		s.sizeStamp.Store(s.now().UnixNano())
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ContainsKey reports whether key maps to a live entry. It uses the same
// liveness predicate as Get but records no statistics and never refreshes
// sliding TTL.
func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, opErr("containsKey", key, ErrEmptyKey)
	}
	if err := s.init(); err != nil {
		return false, err
	}

	var count int64
	nowMs := s.now().UnixMilli()
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Model(&models.CacheEntry{}).
			Where("key = ?", key).
			Where(liveWhere, nowMs, nowMs).
			Count(&count).Error
	})
	if err != nil {
		return false, opErr("containsKey", key, err)
	}
	return count > 0, nil
}

// Keys returns the live keys matching a SQL LIKE pattern ('%' matches any
// sequence, '_' a single character).
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, opErr("keys", "", ErrEmptyPattern)
	}
	if err := s.init(); err != nil {
		return nil, err
	}

	var keys []string
	nowMs := s.now().UnixMilli()
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).
			Model(&models.CacheEntry{}).
			Where("key LIKE ?", pattern).
			Where(liveWhere, nowMs, nowMs).
			Pluck("key", &keys).Error
	})
	if err != nil {
		return nil, opErr("keys", "", err)
	}
	return keys, nil
}

// AllKeys returns every live key.
func (s *Store) AllKeys(ctx context.Context) ([]string, error) {
	return s.Keys(ctx, "%")
}

// EvictByPattern deletes all rows whose key matches a SQL LIKE pattern,
// live or not, and returns the number removed.
func (s *Store) EvictByPattern(ctx context.Context, pattern string) (int64, error) {
	if pattern == "" {
		return 0, opErr("evictByPattern", "", ErrEmptyPattern)
	}
	if err := s.init(); err != nil {
		return 0, err
	}

	var deleted int64
	err := withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).Delete(&models.CacheEntry{}, "key LIKE ?", pattern)
		deleted = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return 0, opErr("evictByPattern", "", err)
	}
	if deleted > 0 {
		s.stats.evictions.Add(deleted)
		s.invalidateSizeCache()
	}
	return deleted, nil
}

// GetAll fetches many keys in one query. Expired rows are skipped and
// counted as misses; sliding TTLs are deliberately not refreshed here (a
// per-row touch would defeat the point of batching). Rows whose payload
// fails to decode are logged and skipped without affecting the rest.
func (s *Store) GetAll(ctx context.Context, keys []string) (map[string]Lookup, error) {
	results := make(map[string]Lookup)
	if len(keys) == 0 {
		return results, nil
	}
	if err := s.init(); err != nil {
		return nil, err
	}

	var entries []models.CacheEntry
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Find(&entries, "key IN ?", keys).Error
	})
	if err != nil {
		return nil, opErr("getAll", "", err)
	}

	now := s.now()
	for _, entry := range entries {
		policy := ttl.ParsePolicy(entry.TTLPolicy)
		if ttl.IsExpired(time.UnixMilli(entry.UpdatedAt), time.UnixMilli(entry.LastAccessed), entry.TTLSeconds, policy, now) {
			continue
		}
		if s.opts.AllowNullValues && codec.IsNullPayload(entry.Value) {
			results[entry.Key] = Lookup{Found: true, Null: true}
			continue
		}
		results[entry.Key] = Lookup{Found: true, Payload: entry.Value}
	}

	s.stats.hits.Add(int64(len(results)))
	s.stats.misses.Add(int64(len(keys) - len(results)))
	return results, nil
}

// PutAll upserts all entries as permanent rows in a single statement.
// The batch is all-or-nothing: an encode failure for any value aborts the
// call before anything is written.
func (s *Store) PutAll(ctx context.Context, entries map[string]any) error {
	return s.putAll(ctx, entries, nil, ttl.Default())
}

// PutAllWithTTL is PutAll with one TTL and policy applied to every entry.
func (s *Store) PutAllWithTTL(ctx context.Context, entries map[string]any, d time.Duration, policy ttl.Policy) error {
	ttlSeconds, err := validateTTL("putAll", "", d, policy)
	if err != nil {
		return err
	}
	return s.putAll(ctx, entries, &ttlSeconds, policy)
}

func (s *Store) putAll(ctx context.Context, entries map[string]any, ttlSeconds *int64, policy ttl.Policy) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.init(); err != nil {
		return err
	}

	nowMs := s.now().UnixMilli()
	rows := make([]models.CacheEntry, 0, len(entries))
	for key, value := range entries {
		if key == "" {
			continue
		}
		payload, err := s.encode("putAll", key, value)
		if err != nil {
			return err
		}
		rows = append(rows, models.CacheEntry{
			Key:          key,
			Value:        payload,
			UpdatedAt:    nowMs,
			TTLSeconds:   ttlSeconds,
			TTLPolicy:    string(policy),
			LastAccessed: nowMs,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "ttl_seconds", "ttl_policy", "last_accessed"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return opErr("putAll", "", err)
	}

	s.stats.puts.Add(int64(len(rows)))
	s.invalidateSizeCache()
	return nil
}

// EvictAll deletes the given keys and returns the number removed.
func (s *Store) EvictAll(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.init(); err != nil {
		return 0, err
	}

	var deleted int64
	err := withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).Delete(&models.CacheEntry{}, "key IN ?", keys)
		deleted = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return 0, opErr("evictAll", "", err)
	}
	if deleted > 0 {
		s.stats.evictions.Add(deleted)
		s.invalidateSizeCache()
	}
	return deleted, nil
}

// RefreshTTL sets a new TTL for key and re-stamps both timestamps to now,
// reporting whether the key existed. The policy is deliberately forced to
// ABSOLUTE: RefreshTTL pins a fixed deadline, and converting an entry to
// sliding expiry goes through PutWithTTL instead. It also converts a
// permanent entry into an expiring one.
func (s *Store) RefreshTTL(ctx context.Context, key string, d time.Duration) (bool, error) {
	if key == "" {
		return false, opErr("refreshTTL", key, ErrEmptyKey)
	}
	if d < 0 {
		return false, opErr("refreshTTL", key, ErrInvalidTTL)
	}
	if err := s.init(); err != nil {
		return false, err
	}

	nowMs := s.now().UnixMilli()
	ttlSeconds := int64(d.Seconds())
	var updated int64
	err := withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).
			Model(&models.CacheEntry{}).
			Where("key = ?", key).
			Updates(map[string]any{
				"ttl_seconds":   ttlSeconds,
				"ttl_policy":    string(ttl.Absolute),
				"updated_at":    nowMs,
				"last_accessed": nowMs,
			})
		updated = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return false, opErr("refreshTTL", key, err)
	}
	return updated > 0, nil
}

// RemainingTTL returns the time left before key expires under its policy.
// The second return is false when the key is absent, permanent, or
// already past its boundary.
func (s *Store) RemainingTTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if key == "" {
		return 0, false, opErr("remainingTTL", key, ErrEmptyKey)
	}
	if err := s.init(); err != nil {
		return 0, false, err
	}

	var entry models.CacheEntry
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Take(&entry, "key = ?", key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, opErr("remainingTTL", key, err)
	}

	remaining, ok := ttl.Remaining(
		time.UnixMilli(entry.UpdatedAt),
		time.UnixMilli(entry.LastAccessed),
		entry.TTLSeconds,
		ttl.ParsePolicy(entry.TTLPolicy),
		s.now(),
	)
	return remaining, ok, nil
}

// TTLPolicyOf returns the stored policy for key; the second return is
// false when the key is absent.
func (s *Store) TTLPolicyOf(ctx context.Context, key string) (ttl.Policy, bool, error) {
	if key == "" {
		return "", false, opErr("ttlPolicy", key, ErrEmptyKey)
	}
	if err := s.init(); err != nil {
		return "", false, err
	}

	var entry models.CacheEntry
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Select("ttl_policy").Take(&entry, "key = ?", key).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, opErr("ttlPolicy", key, err)
	}
	return ttl.ParsePolicy(entry.TTLPolicy), true, nil
}

// CleanupExpired bulk-deletes every expired row and returns the count
// removed. The sweeper calls this on its interval; it is also safe to
// call directly.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	if err := s.init(); err != nil {
		return 0, err
	}

	var deleted int64
	nowMs := s.now().UnixMilli()
	err := withRetry(ctx, func() error {
		tx := s.db.WithContext(ctx).Where(expiredWhere, nowMs, nowMs).Delete(&models.CacheEntry{})
		deleted = tx.RowsAffected
		return tx.Error
	})
	if err != nil {
		return 0, opErr("cleanupExpired", "", err)
	}
	if deleted > 0 {
		s.invalidateSizeCache()
	}
	return deleted, nil
}

// Statistics returns an immutable snapshot of the counters.
func (s *Store) Statistics() Statistics {
	return s.stats.snapshot()
}

// ResetStatistics zeroes all counters.
func (s *Store) ResetStatistics() {
	s.stats.reset()
}

// Ping verifies the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return opErr("ping", "", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return opErr("ping", "", err)
	}
	return nil
}

func (s *Store) encode(op, key string, value any) ([]byte, error) {
	if value == nil || value == codec.Null {
		if !s.opts.AllowNullValues {
			return nil, opErr(op, key, ErrNilValue)
		}
	}
	payload, err := codec.Encode(value)
	if err != nil {
		return nil, opErr(op, key, err)
	}
	return payload, nil
}

func validateTTL(op, key string, d time.Duration, policy ttl.Policy) (int64, error) {
	if d <= 0 {
		return 0, opErr(op, key, ErrInvalidTTL)
	}
	if policy != ttl.Absolute && policy != ttl.Sliding {
		return 0, opErr(op, key, ErrInvalidPolicy)
	}
	return int64(d.Seconds()), nil
}
