package content

import (
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/curio/internal/domain"
)

// Cache holds generated facts keyed by topic for the lifetime of a process.
// A topic is fresh for ttl after its last successful generation; stale entries
// keep being served.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	facts     []domain.Fact
	ids       map[domain.FactID]bool
	refreshed time.Time
}

// NewCache creates an empty cache. A nil clock uses time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*cacheEntry),
	}
}

// Append adds the facts not yet cached under topic and marks the topic
// refreshed. It returns the number of facts added.
func (c *Cache) Append(topic string, facts []domain.Fact) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[topic]
	if !ok {
		e = &cacheEntry{ids: make(map[domain.FactID]bool)}
		c.entries[topic] = e
	}
	added := 0
	for _, f := range facts {
		if e.ids[f.ID] {
			continue
		}
		e.ids[f.ID] = true
		e.facts = append(e.facts, f)
		added++
	}
	e.refreshed = c.now()
	return added
}

// Get returns a copy of the facts cached under topic.
func (c *Cache) Get(topic string) []domain.Fact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[topic]; ok {
		return append([]domain.Fact(nil), e.facts...)
	}
	return nil
}

// Fresh reports whether topic was refreshed within the TTL.
func (c *Cache) Fresh(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[topic]
	return ok && c.now().Sub(e.refreshed) < c.ttl
}

// Count returns how many facts are cached under topic.
func (c *Cache) Count(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[topic]; ok {
		return len(e.facts)
	}
	return 0
}

// Topics returns the cached topics in sorted order.
func (c *Cache) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, 0, len(c.entries))
	for t := range c.entries {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// All returns every cached fact, grouped by topic in sorted topic order.
func (c *Cache) All() []domain.Fact {
	var all []domain.Fact
	for _, t := range c.Topics() {
		all = append(all, c.Get(t)...)
	}
	return all
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}
