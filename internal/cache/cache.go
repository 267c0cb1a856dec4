package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// OpportunityCache is the time-bounded store of live opportunities, keyed by
// id. It owns opportunity lifetime: entries leave only via expiry sweep or
// promotion into a position.
//
// Writes build a fresh map and swap it in atomically, so Snapshot readers
// never block writers and never see a torn intermediate state.
type OpportunityCache struct {
	writeMu sync.Mutex
	entries atomic.Pointer[map[string]models.Opportunity]
}

// New creates an empty opportunity cache
func New() *OpportunityCache {
	c := &OpportunityCache{}
	empty := make(map[string]models.Opportunity)
	c.entries.Store(&empty)
	return c
}

// Merge upserts opportunities by id. New data is authoritative: on a duplicate
// id every field is overwritten.
func (c *OpportunityCache) Merge(opportunities []models.Opportunity) {
	if len(opportunities) == 0 {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := c.copyCurrent()
	for _, opp := range opportunities {
		next[opp.ID] = opp
	}
	c.entries.Store(&next)
}

// SweepExpired removes every entry whose expiry has passed.
// Returns the number of entries removed.
func (c *OpportunityCache) SweepExpired(now time.Time) int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	current := *c.entries.Load()
	next := make(map[string]models.Opportunity, len(current))
	removed := 0
	for id, opp := range current {
		if opp.Expired(now) {
			removed++
			continue
		}
		next[id] = opp
	}

	if removed > 0 {
		c.entries.Store(&next)
	}
	return removed
}

// Remove deletes one entry, used when an opportunity is promoted into a
// position so the same id can never be committed twice.
// Returns the removed opportunity and whether it was present.
func (c *OpportunityCache) Remove(id string) (models.Opportunity, bool) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	current := *c.entries.Load()
	opp, ok := current[id]
	if !ok {
		return models.Opportunity{}, false
	}

	next := c.copyCurrent()
	delete(next, id)
	c.entries.Store(&next)
	return opp, true
}

// Get returns one entry by id without copying the whole set
func (c *OpportunityCache) Get(id string) (models.Opportunity, bool) {
	current := *c.entries.Load()
	opp, ok := current[id]
	return opp, ok
}

// Snapshot returns a point-in-time copy of all live opportunities
func (c *OpportunityCache) Snapshot() []models.Opportunity {
	current := *c.entries.Load()
	snapshot := make([]models.Opportunity, 0, len(current))
	for _, opp := range current {
		snapshot = append(snapshot, opp)
	}
	return snapshot
}

// Len returns the number of live entries
func (c *OpportunityCache) Len() int {
	return len(*c.entries.Load())
}

// copyCurrent clones the live map; callers must hold writeMu
func (c *OpportunityCache) copyCurrent() map[string]models.Opportunity {
	current := *c.entries.Load()
	next := make(map[string]models.Opportunity, len(current)+1)
	for id, opp := range current {
		next[id] = opp
	}
	return next
}
