package entities

// CacheStats represents cache statistics
type CacheStats struct {
	// Hits is the number of cache hits
	Hits int64 `json:"hits"`

	// Misses is the number of cache misses
	Misses int64 `json:"misses"`

	// Evictions is the number of entries dropped to make room
	Evictions int64 `json:"evictions"`

	// Entries is the current number of cached items
	Entries int `json:"entries"`

	// Bytes is the current cached size
	Bytes int64 `json:"bytes"`

	// MaxBytes is the size at which eviction starts
	MaxBytes int64 `json:"max_bytes"`

	// HitRate is the fraction of lookups served from cache
	HitRate float64 `json:"hit_rate"`
}
