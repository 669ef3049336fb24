package scraper

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedPage is a raw listing page kept around for selector debugging.
type CachedPage struct {
	Backend         string    `json:"backend"`
	Page            int       `json:"page"`
	HTML            string    `json:"html"`
	FetchedAt       time.Time `json:"fetched_at"`
	MatchedSelector string    `json:"matched_selector"`
	RowCount        int       `json:"row_count"`
	SkippedRows     int       `json:"skipped_rows"`
}

// PageCache holds the most recently fetched raw pages, keyed by backend
// and page number, so selector changes on the panel can be diagnosed
// without refetching.
type PageCache struct {
	lru *lru.Cache[string, CachedPage]
}

// NewPageCache returns a cache bounded to size entries.
func NewPageCache(size int) (*PageCache, error) {
	c, err := lru.New[string, CachedPage](size)
	if err != nil {
		return nil, fmt.Errorf("page cache: %w", err)
	}
	return &PageCache{lru: c}, nil
}

func cacheKey(backend string, page int) string {
	return fmt.Sprintf("%s:%d", backend, page)
}

// Put stores a page, evicting the least recently used entry when full.
func (c *PageCache) Put(p CachedPage) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(p.Backend, p.Page), p)
}

// Get returns a cached page if present.
func (c *PageCache) Get(backend string, page int) (CachedPage, bool) {
	if c == nil {
		return CachedPage{}, false
	}
	return c.lru.Get(cacheKey(backend, page))
}
