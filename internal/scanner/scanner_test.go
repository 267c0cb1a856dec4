package scanner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/events"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/normalizer"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/scanner"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/sources"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// stubAdapter is an in-memory source for orchestration tests
type stubAdapter struct {
	key        string
	oppType    models.OpportunityType
	candidates []models.RawCandidate
	err        error
	block      chan struct{} // When set, FetchCandidates waits until closed
	started    chan struct{} // When set, closed once FetchCandidates begins
	startOnce  sync.Once
}

func (s *stubAdapter) Key() string                  { return s.key }
func (s *stubAdapter) Type() models.OpportunityType { return s.oppType }

func (s *stubAdapter) FetchCandidates(ctx context.Context) ([]models.RawCandidate, error) {
	if s.started != nil {
		s.startOnce.Do(func() { close(s.started) })
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

// eventRecorder captures published events for assertions
type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) Deliver(event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) byType(t models.EventType) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func candidate(id string, confidence, odds float64) models.RawCandidate {
	return models.RawCandidate{
		ID:           id,
		SportKey:     "basketball_nba",
		SubjectLabel: "subject " + id,
		Line:         100.0,
		DecimalOdds:  odds,
		Confidence:   confidence,
	}
}

func newScanner(t *testing.T, adapters ...*stubAdapter) (*scanner.Scanner, *cache.OpportunityCache, *eventRecorder) {
	t.Helper()

	registry := sources.NewRegistry()
	for _, a := range adapters {
		if err := registry.Register(a); err != nil {
			t.Fatalf("register %s: %v", a.key, err)
		}
	}

	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder)

	opportunityCache := cache.New()
	norm := normalizer.New(0.25, 0.10, 5*time.Minute)
	cfg := models.DefaultRiskConfig()

	s := scanner.New(registry, norm, opportunityCache, bus, cfg, nil, time.Hour, 500*time.Millisecond)
	return s, opportunityCache, recorder
}

func TestScanCycleMergesAllSources(t *testing.T) {
	valueBets := &stubAdapter{
		key:        "value_bet_feed",
		oppType:    models.OpportunityTypeValueBet,
		candidates: []models.RawCandidate{candidate("vb-1", 0.70, 2.0), candidate("vb-2", 0.60, 1.8)},
	}
	props := &stubAdapter{
		key:        "prop_feed",
		oppType:    models.OpportunityTypeProp,
		candidates: []models.RawCandidate{candidate("prop-1", 0.65, 2.2)},
	}

	s, opportunityCache, recorder := newScanner(t, valueBets, props)

	if err := s.ScanCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if opportunityCache.Len() != 3 {
		t.Errorf("cache has %d entries, want 3", opportunityCache.Len())
	}

	completed := recorder.byType(models.EventScanCompleted)
	if len(completed) != 1 {
		t.Fatalf("got %d scan:completed events, want 1", len(completed))
	}

	payload := completed[0].Payload.(models.ScanCompletedEvent)
	if len(payload.Opportunities) != 3 {
		t.Errorf("event carried %d opportunities, want 3", len(payload.Opportunities))
	}
	if payload.ScanTimeMs < 0 {
		t.Errorf("negative scan time: %d", payload.ScanTimeMs)
	}

	status := s.Status()
	if status.CycleCount != 1 {
		t.Errorf("cycle count = %d, want 1", status.CycleCount)
	}
	if status.State != scanner.StateIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
}

func TestScanCycleIsolatesFailingSource(t *testing.T) {
	good1 := &stubAdapter{
		key:        "value_bet_feed",
		oppType:    models.OpportunityTypeValueBet,
		candidates: []models.RawCandidate{candidate("vb-1", 0.70, 2.0)},
	}
	good2 := &stubAdapter{
		key:        "prop_feed",
		oppType:    models.OpportunityTypeProp,
		candidates: []models.RawCandidate{candidate("prop-1", 0.65, 2.2)},
	}
	failing := &stubAdapter{
		key:     "arbitrage_feed",
		oppType: models.OpportunityTypeArbitrage,
		err:     sources.ErrAdapter,
	}

	s, opportunityCache, recorder := newScanner(t, good1, good2, failing)

	if err := s.ScanCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	// The two healthy sources still land in the cache
	if opportunityCache.Len() != 2 {
		t.Errorf("cache has %d entries, want 2", opportunityCache.Len())
	}

	// Exactly one scan:error for the failing source
	errs := recorder.byType(models.EventScanError)
	if len(errs) != 1 {
		t.Fatalf("got %d scan:error events, want 1", len(errs))
	}
	payload := errs[0].Payload.(models.ScanErrorEvent)
	if payload.Source != "arbitrage_feed" {
		t.Errorf("error source = %s, want arbitrage_feed", payload.Source)
	}

	// The allocation comes from the successful sources only
	completed := recorder.byType(models.EventScanCompleted)
	if len(completed) != 1 {
		t.Fatalf("got %d scan:completed events, want 1", len(completed))
	}
	alloc := completed[0].Payload.(models.ScanCompletedEvent).Allocation
	for _, opp := range alloc.Opportunities {
		if opp.Source == "arbitrage_feed" {
			t.Errorf("allocation includes failed source opportunity %s", opp.ID)
		}
	}

	if s.Status().SourceFailures["arbitrage_feed"] != 1 {
		t.Errorf("failure count = %d, want 1", s.Status().SourceFailures["arbitrage_feed"])
	}
}

func TestOverlappingScanRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := &stubAdapter{
		key:        "value_bet_feed",
		oppType:    models.OpportunityTypeValueBet,
		candidates: []models.RawCandidate{candidate("vb-1", 0.70, 2.0)},
		block:      release,
		started:    started,
	}

	s, _, _ := newScanner(t, slow)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.ScanCycle(context.Background())
	}()

	<-started

	// Second trigger while the first cycle is mid-flight is rejected
	if err := s.ScanCycle(context.Background()); err == nil {
		t.Error("overlapping scan was not rejected")
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}

	// With the first cycle finished the scanner accepts triggers again
	if err := s.ScanCycle(context.Background()); err != nil {
		t.Errorf("post-cycle scan rejected: %v", err)
	}
}

func TestSlowAdapterDroppedAtTimeout(t *testing.T) {
	never := make(chan struct{}) // Never closed: adapter hangs until its timeout
	hanging := &stubAdapter{
		key:        "arbitrage_feed",
		oppType:    models.OpportunityTypeArbitrage,
		candidates: []models.RawCandidate{candidate("arb-1", 0.70, 2.0)},
		block:      never,
	}
	healthy := &stubAdapter{
		key:        "value_bet_feed",
		oppType:    models.OpportunityTypeValueBet,
		candidates: []models.RawCandidate{candidate("vb-1", 0.70, 2.0)},
	}

	s, opportunityCache, recorder := newScanner(t, hanging, healthy)

	if err := s.ScanCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if opportunityCache.Len() != 1 {
		t.Errorf("cache has %d entries, want 1 (hanging source dropped)", opportunityCache.Len())
	}

	if errs := recorder.byType(models.EventScanError); len(errs) != 1 {
		t.Errorf("got %d scan:error events, want 1", len(errs))
	}
}

func TestStoppedScannerRejectsCycles(t *testing.T) {
	adapter := &stubAdapter{
		key:        "value_bet_feed",
		oppType:    models.OpportunityTypeValueBet,
		candidates: []models.RawCandidate{candidate("vb-1", 0.70, 2.0)},
	}

	s, _, _ := newScanner(t, adapter)
	s.Stop()

	if err := s.ScanCycle(context.Background()); err == nil {
		t.Error("stopped scanner accepted a cycle")
	}

	if s.Status().State != scanner.StateStopped {
		t.Errorf("state = %s, want stopped", s.Status().State)
	}
}
