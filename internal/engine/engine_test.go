package engine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/engine"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/events"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/ledger"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) Deliver(event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(t models.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func liveOpp(id string, confidence float64) models.Opportunity {
	return models.Opportunity{
		ID:            id,
		Type:          models.OpportunityTypeValueBet,
		Source:        "value_bet_feed",
		SportKey:      "basketball_nba",
		SubjectLabel:  "BOS @ MIA over 215.5",
		Line:          215.5,
		Odds:          1.91,
		Confidence:    confidence,
		ExpectedValue: confidence*1.91 - 1,
		KellyFraction: 0.04,
		RiskLevel:     models.RiskLevelMedium,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
}

func newEngine(t *testing.T) (*engine.Engine, *cache.OpportunityCache, *eventRecorder) {
	t.Helper()

	opportunityCache := cache.New()
	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder)

	cfg := models.DefaultRiskConfig()
	e := engine.New(opportunityCache, ledger.New(), bus, cfg, nil)
	return e, opportunityCache, recorder
}

func TestPlaceBetPromotesOpportunity(t *testing.T) {
	e, opportunityCache, recorder := newEngine(t)
	opportunityCache.Merge([]models.Opportunity{liveOpp("opp-1", 0.70)})

	result := e.PlaceBet(context.Background(), "opp-1", 50.0)

	if !result.Success {
		t.Fatalf("placement rejected: %s", result.Error)
	}
	if result.PositionID == "" {
		t.Error("success result missing position id")
	}

	// The opportunity left the cache on promotion
	if _, ok := opportunityCache.Get("opp-1"); ok {
		t.Error("opportunity still active after promotion")
	}

	// A second placement against the same id fails
	second := e.PlaceBet(context.Background(), "opp-1", 50.0)
	if second.Success {
		t.Error("same opportunity backed two positions")
	}

	if recorder.count(models.EventBetPlaced) != 1 {
		t.Errorf("got %d bet:placed events, want 1", recorder.count(models.EventBetPlaced))
	}

	positions := e.Positions()
	if len(positions) != 1 {
		t.Fatalf("ledger has %d positions, want 1", len(positions))
	}
	if positions[0].EntryPrice != 215.5 {
		t.Errorf("entry price = %f, want the opportunity line", positions[0].EntryPrice)
	}
	if positions[0].Side != models.SideOver {
		t.Errorf("side = %s, want over", positions[0].Side)
	}
}

func TestPlaceBetConstraints(t *testing.T) {
	tests := []struct {
		name       string
		oppID      string
		confidence float64
		amount     float64
		wantReason string
	}{
		{
			name:       "Unknown opportunity",
			oppID:      "missing",
			confidence: 0.70,
			amount:     50.0,
			wantReason: "not active",
		},
		{
			name:       "Non-positive stake",
			oppID:      "opp-1",
			confidence: 0.70,
			amount:     0,
			wantReason: "must be positive",
		},
		{
			name:       "Stake above single bet cap",
			oppID:      "opp-1",
			confidence: 0.70,
			amount:     150.0,
			wantReason: "max single bet",
		},
		{
			name:       "Confidence below floor",
			oppID:      "opp-1",
			confidence: 0.40,
			amount:     50.0,
			wantReason: "below floor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, opportunityCache, _ := newEngine(t)
			opportunityCache.Merge([]models.Opportunity{liveOpp("opp-1", tt.confidence)})

			result := e.PlaceBet(context.Background(), tt.oppID, tt.amount)

			if result.Success {
				t.Fatal("expected rejection")
			}
			if !strings.Contains(result.Error, tt.wantReason) {
				t.Errorf("reason = %q, want it to mention %q", result.Error, tt.wantReason)
			}

			// Rejection leaves the opportunity in the cache
			if _, ok := opportunityCache.Get("opp-1"); !ok {
				t.Error("rejected placement consumed the opportunity")
			}
		})
	}
}

func TestPlaceBetExposureCap(t *testing.T) {
	e, opportunityCache, _ := newEngine(t)

	// Default config: bankroll 1000, max total exposure 0.50 -> cap 500
	for i := 0; i < 6; i++ {
		opp := liveOpp("opp-"+string(rune('a'+i)), 0.70)
		opportunityCache.Merge([]models.Opportunity{opp})
	}

	// Five bets of 100 reach the cap exactly
	for i := 0; i < 5; i++ {
		result := e.PlaceBet(context.Background(), "opp-"+string(rune('a'+i)), 100.0)
		if !result.Success {
			t.Fatalf("bet %d rejected: %s", i, result.Error)
		}
	}

	// The sixth would exceed it
	result := e.PlaceBet(context.Background(), "opp-f", 100.0)
	if result.Success {
		t.Fatal("placement past the exposure cap accepted")
	}
	if !strings.Contains(result.Error, "exposure") {
		t.Errorf("reason = %q, want it to mention exposure", result.Error)
	}
}

func TestPlaceBetConcurrentPlacementsHoldExposureCap(t *testing.T) {
	opportunityCache := cache.New()
	bus := events.NewBus()

	// Cap is 0.10 × 1000 = 100: any single 60-unit stake fits, any two do not
	cfg := models.DefaultRiskConfig()
	cfg.MaxTotalExposure = 0.10
	e := engine.New(opportunityCache, ledger.New(), bus, cfg, nil)

	const workers = 50
	opps := make([]models.Opportunity, 0, workers)
	for i := 0; i < workers; i++ {
		opps = append(opps, liveOpp(fmt.Sprintf("opp-%d", i), 0.70))
	}
	opportunityCache.Merge(opps)

	var wg sync.WaitGroup
	var admitted int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if e.PlaceBet(context.Background(), id, 60.0).Success {
				atomic.AddInt64(&admitted, 1)
			}
		}(fmt.Sprintf("opp-%d", i))
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("got %d admitted placements, want 1", admitted)
	}

	openStake := 0.0
	for _, p := range e.Positions() {
		openStake += p.Stake
	}
	if openStake > 100.0 {
		t.Errorf("open stake %.2f exceeds exposure cap 100", openStake)
	}
}

func TestClosePositionPublishesMetrics(t *testing.T) {
	e, opportunityCache, recorder := newEngine(t)
	opportunityCache.Merge([]models.Opportunity{liveOpp("opp-1", 0.70)})

	result := e.PlaceBet(context.Background(), "opp-1", 50.0)
	if !result.Success {
		t.Fatalf("placement rejected: %s", result.Error)
	}

	position, err := e.ClosePosition(result.PositionID, 237.05) // +10% over 215.5
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if position.Pnl == nil || *position.Pnl <= 0 {
		t.Errorf("pnl = %v, want positive", position.Pnl)
	}

	if recorder.count(models.EventPositionClosed) != 1 {
		t.Errorf("got %d position:closed events, want 1", recorder.count(models.EventPositionClosed))
	}

	metrics := e.GetPerformanceMetrics()
	if metrics.TotalBets != 1 || metrics.WinningBets != 1 {
		t.Errorf("metrics = %+v, want one winning bet", metrics)
	}
}

func TestGetActiveOpportunitiesSortedByScore(t *testing.T) {
	e, opportunityCache, _ := newEngine(t)

	low := liveOpp("low", 0.60)
	low.ExpectedValue = 0.10
	high := liveOpp("high", 0.80)
	high.ExpectedValue = 0.50
	opportunityCache.Merge([]models.Opportunity{low, high})

	active := e.GetActiveOpportunities()
	if len(active) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(active))
	}
	if active[0].ID != "high" {
		t.Errorf("first opportunity = %s, want high", active[0].ID)
	}
}

func TestUnderSideInferredFromLabel(t *testing.T) {
	e, opportunityCache, _ := newEngine(t)

	opp := liveOpp("opp-u", 0.70)
	opp.SubjectLabel = "BOS @ MIA under 215.5"
	opportunityCache.Merge([]models.Opportunity{opp})

	result := e.PlaceBet(context.Background(), "opp-u", 50.0)
	if !result.Success {
		t.Fatalf("placement rejected: %s", result.Error)
	}

	positions := e.Positions()
	if positions[0].Side != models.SideUnder {
		t.Errorf("side = %s, want under", positions[0].Side)
	}
}
