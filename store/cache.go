// Package store holds the process-wide case cache.
//
// The cache has a single writer, the lifecycle service. Everything else
// reads through Reader and receives deep copies.
package store

import (
	"sync"

	"github.com/thegitsss/lets-para3-sub002/cases"
)

// Reader is the read-only view handed to every non-writer.
type Reader interface {
	Get(caseID string) (cases.Case, bool)
	Active() []cases.Case
	Archived() []cases.Case
}

type Cache struct {
	mu       sync.RWMutex
	active   []cases.Case
	archived []cases.Case
	lookup   map[string]cases.Case
}

func NewCache() *Cache {
	return &Cache{lookup: make(map[string]cases.Case)}
}

// Replace rebuilds the cache from a fresh fetch. A case present in both
// lists is filed by its own Archived flag.
func (c *Cache) Replace(active, archived []cases.Case) {
	lookup := make(map[string]cases.Case, len(active)+len(archived))
	nextActive := make([]cases.Case, 0, len(active))
	nextArchived := make([]cases.Case, 0, len(archived))

	add := func(item cases.Case) {
		if item.ID == "" {
			return
		}
		if _, dup := lookup[item.ID]; dup {
			return
		}
		item = item.Clone()
		lookup[item.ID] = item
		if item.Archived {
			nextArchived = append(nextArchived, item)
		} else {
			nextActive = append(nextActive, item)
		}
	}
	for _, item := range active {
		add(item)
	}
	for _, item := range archived {
		add(item)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nextActive
	c.archived = nextArchived
	c.lookup = lookup
}

// Upsert merges item in place, moving it between the active and archived
// collections when its Archived flag changed.
func (c *Cache) Upsert(item cases.Case) {
	if item.ID == "" {
		return
	}
	item = item.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookup[item.ID] = item
	if item.Archived {
		c.active = without(c.active, item.ID)
		c.archived = upsertInto(c.archived, item)
	} else {
		c.archived = without(c.archived, item.ID)
		c.active = upsertInto(c.active, item)
	}
}

// Remove prunes caseID from every collection.
func (c *Cache) Remove(caseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.lookup, caseID)
	c.active = without(c.active, caseID)
	c.archived = without(c.archived, caseID)
}

func (c *Cache) Get(caseID string) (cases.Case, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.lookup[caseID]
	if !ok {
		return cases.Case{}, false
	}
	return item.Clone(), true
}

func (c *Cache) Active() []cases.Case {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.active)
}

func (c *Cache) Archived() []cases.Case {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.archived)
}

// Len returns the number of cached cases.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lookup)
}

func upsertInto(list []cases.Case, item cases.Case) []cases.Case {
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

func without(list []cases.Case, caseID string) []cases.Case {
	out := list[:0]
	for _, item := range list {
		if item.ID != caseID {
			out = append(out, item)
		}
	}
	return out
}

func cloneAll(list []cases.Case) []cases.Case {
	out := make([]cases.Case, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}
