package adventure

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is the read-only adventure lookup used by the group finder.
type Catalog interface {
	GetByID(id int) (*Definition, error)
	GetByLevel(level int) []*Definition
	Get(pred func(*Definition) bool) []*Definition
	All() []*Definition
}

// MemoryCatalog holds definitions ordered by minimum level, then id.
type MemoryCatalog struct {
	mu      sync.RWMutex
	byID    map[int]*Definition
	ordered []*Definition
}

// NewMemoryCatalog validates and indexes defs.
func NewMemoryCatalog(defs ...*Definition) (*MemoryCatalog, error) {
	c := &MemoryCatalog{byID: make(map[int]*Definition, len(defs))}
	for _, d := range defs {
		if err := Validate(d); err != nil {
			return nil, err
		}
		if _, ok := c.byID[d.ID]; ok {
			return nil, fmt.Errorf("adventure %d: %w", d.ID, ErrDuplicateID)
		}
		c.byID[d.ID] = d
		c.ordered = append(c.ordered, d)
	}
	sortDefinitions(c.ordered)
	return c, nil
}

func sortDefinitions(defs []*Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].MinLevel != defs[j].MinLevel {
			return defs[i].MinLevel < defs[j].MinLevel
		}
		return defs[i].ID < defs[j].ID
	})
}

func (c *MemoryCatalog) GetByID(id int) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("adventure %d: %w", id, ErrNotFound)
	}
	return d, nil
}

func (c *MemoryCatalog) GetByLevel(level int) []*Definition {
	return c.Get(func(d *Definition) bool { return d.InLevelRange(level) })
}

func (c *MemoryCatalog) Get(pred func(*Definition) bool) []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Definition
	for _, d := range c.ordered {
		if pred == nil || pred(d) {
			out = append(out, d)
		}
	}
	return out
}

func (c *MemoryCatalog) All() []*Definition {
	return c.Get(nil)
}

func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}
