package salesbot

import (
	"sync"
	"time"

	"github.com/alpha-insights/salesbot/domain/model"
)

// DefaultCacheTTL is how long a loaded dataset is reused before the next
// question triggers re-ingestion.
const DefaultCacheTTL = time.Hour

// cacheEntry is one loaded dataset snapshot plus its load artifacts.
type cacheEntry struct {
	dataset  *model.Frame
	files    []model.FileInfo
	stats    model.LoadStats
	summary  model.SourceSummary
	loadedAt time.Time
}

// DatasetCache holds loaded datasets keyed by folder ID with a fixed TTL.
// Entries are immutable snapshots; readers share them without copying.
type DatasetCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewDatasetCache builds a cache with the given TTL, defaulting to
// DefaultCacheTTL when ttl is not positive.
func NewDatasetCache(ttl time.Duration) *DatasetCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DatasetCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the cached entry for the folder, or nil when absent or
// expired. Expired entries are dropped on access.
func (c *DatasetCache) Get(folderID string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[folderID]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.loadedAt) > c.ttl {
		delete(c.entries, folderID)
		return nil
	}
	return entry
}

// Put stores a freshly loaded dataset for the folder.
func (c *DatasetCache) Put(folderID string, dataset *model.Frame, files []model.FileInfo, stats model.LoadStats, summary model.SourceSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[folderID] = &cacheEntry{
		dataset:  dataset,
		files:    files,
		stats:    stats,
		summary:  summary,
		loadedAt: c.now(),
	}
}

// Invalidate removes the folder's entry, forcing the next access to
// re-ingest.
func (c *DatasetCache) Invalidate(folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, folderID)
}
