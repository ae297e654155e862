package geocode

import (
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/helixml/travelmap/domain/place"
)

// Cache defaults.
const (
	DefaultCacheSize      = 10000
	DefaultCacheTTL       = 24 * time.Hour
	DefaultCachePrecision = 2
)

// Bucket is a quantized coordinate used as cache key. Coordinates are
// rounded to a fixed number of decimal degrees.
type Bucket struct {
	lat int64
	lng int64
}

// Entry is a cached resolution.
type Entry struct {
	key        Bucket
	city       string
	resolvedAt time.Time
}

// Key returns the bucket the entry was stored under.
func (e Entry) Key() Bucket { return e.key }

// City returns the resolved locality.
func (e Entry) City() string { return e.city }

// ResolvedAt returns when the locality was resolved.
func (e Entry) ResolvedAt() time.Time { return e.resolvedAt }

// Cache is a bounded, TTL-expiring cache of successful resolutions.
// It is safe for concurrent use.
type Cache struct {
	lru   *expirable.LRU[Bucket, Entry]
	scale float64
	now   func() time.Time
}

// NewCache creates a Cache. Non-positive arguments fall back to defaults;
// a negative precision is treated as zero.
func NewCache(size int, ttl time.Duration, precision int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if precision < 0 {
		precision = 0
	}
	return &Cache{
		lru:   expirable.NewLRU[Bucket, Entry](size, nil, ttl),
		scale: math.Pow10(precision),
		now:   time.Now,
	}
}

// Key quantizes coordinates into a bucket.
func (c *Cache) Key(coordinates place.Coordinates) Bucket {
	return Bucket{
		lat: int64(math.Round(coordinates.Latitude() * c.scale)),
		lng: int64(math.Round(coordinates.Longitude() * c.scale)),
	}
}

// Get returns the entry for key if present and not expired.
func (c *Cache) Get(key Bucket) (Entry, bool) {
	return c.lru.Get(key)
}

// Put stores a successful resolution. Empty cities are ignored.
func (c *Cache) Put(key Bucket, city string) {
	if city == "" {
		return
	}
	c.lru.Add(key, Entry{key: key, city: city, resolvedAt: c.now()})
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge removes all entries.
func (c *Cache) Purge() {
	c.lru.Purge()
}
