package models

// CacheEntry represents one cached key-value row.
//
// Timestamps are unix milliseconds rather than datetime columns so that
// liveness predicates stay plain integer arithmetic and run unchanged on
// every gorm dialect.
type CacheEntry struct {
	Key          string `json:"key" gorm:"primaryKey;column:key"`
	Value        []byte `json:"-" gorm:"column:value;not null"`
	UpdatedAt    int64  `json:"updatedAt" gorm:"column:updated_at;not null"`
	TTLSeconds   *int64 `json:"ttlSeconds" gorm:"column:ttl_seconds"`
	TTLPolicy    string `json:"ttlPolicy" gorm:"column:ttl_policy;size:10;default:'ABSOLUTE'"`
	LastAccessed int64  `json:"lastAccessed" gorm:"column:last_accessed;not null"`
}

// TableName specifies the table name for the CacheEntry model
func (CacheEntry) TableName() string {
	return "cache_entries"
}
