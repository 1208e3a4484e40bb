// Package cache keeps recently loaded datasets keyed by content hash.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/pkg/observability"
)

const DefaultSize = 16

// DatasetCache is a bounded, concurrency-safe store of immutable datasets.
type DatasetCache struct {
	entries *lru.Cache[string, *dataset.Dataset]
}

// NewDatasetCache creates a cache holding at most size datasets.
func NewDatasetCache(size int) (*DatasetCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, *dataset.Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset cache: %w", err)
	}
	return &DatasetCache{entries: entries}, nil
}

// Get returns the dataset stored under id.
func (c *DatasetCache) Get(id string) (*dataset.Dataset, bool) {
	ds, ok := c.entries.Get(id)
	if ok {
		observability.DatasetCacheTotal.WithLabelValues("hit").Inc()
	} else {
		observability.DatasetCacheTotal.WithLabelValues("miss").Inc()
	}
	return ds, ok
}

// Put stores ds under its ID, evicting the least recently used entry when full.
func (c *DatasetCache) Put(ds *dataset.Dataset) {
	if ds == nil || ds.ID == "" {
		return
	}
	c.entries.Add(ds.ID, ds)
}

// Invalidate drops id and reports whether it was present.
func (c *DatasetCache) Invalidate(id string) bool {
	return c.entries.Remove(id)
}

// Purge drops every entry.
func (c *DatasetCache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached datasets.
func (c *DatasetCache) Len() int {
	return c.entries.Len()
}
