package cache_test

import (
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

func makeOpp(id string, expiresAt time.Time) models.Opportunity {
	return models.Opportunity{
		ID:            id,
		Type:          models.OpportunityTypeValueBet,
		Source:        "value_bet_feed",
		SubjectLabel:  "subject " + id,
		Odds:          2.0,
		Confidence:    0.6,
		ExpectedValue: 0.2,
		KellyFraction: 0.05,
		RiskLevel:     models.RiskLevelMedium,
		CreatedAt:     time.Now(),
		ExpiresAt:     expiresAt,
	}
}

func snapshotIDs(c *cache.OpportunityCache) []string {
	snapshot := c.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for _, opp := range snapshot {
		ids = append(ids, opp.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestMergeUpsertsByID(t *testing.T) {
	c := cache.New()
	future := time.Now().Add(time.Hour)

	c.Merge([]models.Opportunity{makeOpp("a", future), makeOpp("b", future)})

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}

	// New data for an existing id overwrites all fields
	updated := makeOpp("a", future)
	updated.Confidence = 0.9
	updated.KellyFraction = 0.08
	c.Merge([]models.Opportunity{updated})

	if c.Len() != 2 {
		t.Fatalf("len after upsert = %d, want 2", c.Len())
	}

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("entry a missing after upsert")
	}
	if got.Confidence != 0.9 || got.KellyFraction != 0.08 {
		t.Errorf("upsert did not overwrite fields: %+v", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	c := cache.New()
	future := time.Now().Add(time.Hour)
	opps := []models.Opportunity{makeOpp("a", future), makeOpp("b", future)}

	c.Merge(opps)
	before := c.Snapshot()
	sort.Slice(before, func(i, j int) bool { return before[i].ID < before[j].ID })

	c.Merge(opps)
	after := c.Snapshot()
	sort.Slice(after, func(i, j int) bool { return after[i].ID < after[j].ID })

	if !reflect.DeepEqual(before, after) {
		t.Error("merging identical opportunities twice changed the snapshot")
	}
}

func TestSweepExpired(t *testing.T) {
	c := cache.New()
	now := time.Now()

	c.Merge([]models.Opportunity{
		makeOpp("live", now.Add(time.Hour)),
		makeOpp("stale-1", now.Add(-time.Minute)),
		makeOpp("stale-2", now.Add(-time.Hour)),
	})

	removed := c.SweepExpired(now)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	ids := snapshotIDs(c)
	if !reflect.DeepEqual(ids, []string{"live"}) {
		t.Errorf("snapshot after sweep = %v, want [live]", ids)
	}

	// A second sweep finds nothing
	if removed := c.SweepExpired(now); removed != 0 {
		t.Errorf("second sweep removed %d, want 0", removed)
	}
}

func TestRemovePromotesAtMostOnce(t *testing.T) {
	c := cache.New()
	future := time.Now().Add(time.Hour)
	c.Merge([]models.Opportunity{makeOpp("a", future)})

	opp, ok := c.Remove("a")
	if !ok {
		t.Fatal("expected removal to succeed")
	}
	if opp.ID != "a" {
		t.Errorf("removed id = %s, want a", opp.ID)
	}

	if _, ok := c.Remove("a"); ok {
		t.Error("second removal of the same id succeeded")
	}

	if c.Len() != 0 {
		t.Errorf("len = %d, want 0", c.Len())
	}
}

func TestSnapshotIsPointInTime(t *testing.T) {
	c := cache.New()
	future := time.Now().Add(time.Hour)
	c.Merge([]models.Opportunity{makeOpp("a", future)})

	snapshot := c.Snapshot()

	// Mutations after the snapshot must not be visible in it
	c.Merge([]models.Opportunity{makeOpp("b", future)})
	c.Remove("a")

	if len(snapshot) != 1 || snapshot[0].ID != "a" {
		t.Errorf("snapshot changed after later mutations: %+v", snapshot)
	}
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	c := cache.New()
	future := time.Now().Add(time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c.Merge([]models.Opportunity{makeOpp(fmt.Sprintf("opp-%d", i), future)})
			if i%50 == 0 {
				c.SweepExpired(time.Now())
			}
		}
	}()

	// Readers run against the writer; every snapshot must be internally
	// consistent (all entries fully populated).
	for i := 0; i < 200; i++ {
		for _, opp := range c.Snapshot() {
			if opp.ID == "" || opp.SubjectLabel == "" {
				t.Fatal("torn opportunity observed in snapshot")
			}
		}
	}

	<-done
}
