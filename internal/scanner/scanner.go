package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/cache"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/events"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/normalizer"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/optimizer"
	"github.com/XavierBriggs/fortuna/services/bet-engine/internal/sources"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// State is the orchestrator's lifecycle state
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateStopped  State = "stopped"
)

// Status is the introspection snapshot exposed over the API
type Status struct {
	State          State          `json:"state"`
	CycleCount     int64          `json:"cycle_count"`
	LastScanAt     time.Time      `json:"last_scan_at"`
	LastDurationMs int64          `json:"last_duration_ms"`
	SourceFailures map[string]int `json:"source_failures"` // Consecutive failures per source
}

// Scanner drives periodic scan cycles: parallel adapter fan-out, candidate
// normalization into the cache, expiry sweep, then portfolio optimization.
// A single cycle is in flight at any time; an overlapping trigger is rejected,
// not queued.
type Scanner struct {
	registry     *sources.Registry
	norm         *normalizer.Normalizer
	cache        *cache.OpportunityCache
	bus          *events.Bus
	riskCfg      models.RiskConfig
	bankroll     contracts.BankrollProvider
	interval     time.Duration
	fetchTimeout time.Duration

	mu             sync.Mutex
	state          State
	cancel         context.CancelFunc
	cycleCount     int64
	lastScanAt     time.Time
	lastDurationMs int64
	lastAllocation models.PortfolioAllocation
	sourceFailures map[string]int
}

// New creates a scanner. bankroll may be nil: stakes are then sized against
// the reference bankroll in riskCfg.
func New(
	registry *sources.Registry,
	norm *normalizer.Normalizer,
	opportunityCache *cache.OpportunityCache,
	bus *events.Bus,
	riskCfg models.RiskConfig,
	bankroll contracts.BankrollProvider,
	interval time.Duration,
	fetchTimeout time.Duration,
) *Scanner {
	return &Scanner{
		registry:       registry,
		norm:           norm,
		cache:          opportunityCache,
		bus:            bus,
		riskCfg:        riskCfg,
		bankroll:       bankroll,
		interval:       interval,
		fetchTimeout:   fetchTimeout,
		state:          StateIdle,
		sourceFailures: make(map[string]int),
	}
}

// Start launches the periodic scan loop. It is a no-op if the scanner is
// already running; a stopped scanner can be started again.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateIdle
	s.mu.Unlock()

	go s.run(runCtx)
}

// Stop cancels the scan timer. An in-flight cycle finishes; no further cycles
// are scheduled.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateStopped
}

// Status returns the scanner's introspection snapshot
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make(map[string]int, len(s.sourceFailures))
	for k, v := range s.sourceFailures {
		failures[k] = v
	}

	return Status{
		State:          s.state,
		CycleCount:     s.cycleCount,
		LastScanAt:     s.lastScanAt,
		LastDurationMs: s.lastDurationMs,
		SourceFailures: failures,
	}
}

// LastAllocation returns the allocation produced by the most recent cycle
func (s *Scanner) LastAllocation() models.PortfolioAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAllocation
}

// run drives cycles on the fixed interval until the context is cancelled
func (s *Scanner) run(ctx context.Context) {
	log.Printf("[Scanner] starting, interval=%s sources=%d", s.interval, s.registry.Count())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial cycle on start
	if err := s.ScanCycle(ctx); err != nil {
		log.Printf("[Scanner] initial cycle: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("[Scanner] stopped")
			return
		case <-ticker.C:
			if err := s.ScanCycle(ctx); err != nil {
				log.Printf("[Scanner] cycle: %v", err)
			}
		}
	}
}

// ScanCycle runs one full cycle. Returns an error when a cycle is already in
// flight; the trigger is rejected rather than queued.
func (s *Scanner) ScanCycle(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateScanning {
		s.mu.Unlock()
		return fmt.Errorf("scan already in flight")
	}
	if s.state == StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("scanner is stopped")
	}
	s.state = StateScanning
	s.mu.Unlock()

	started := time.Now()
	s.fanOut(ctx)

	// Post-fan-out barrier: everything merged by now belongs to this cycle
	now := time.Now()
	if removed := s.cache.SweepExpired(now); removed > 0 {
		log.Printf("[Scanner] swept %d expired opportunities", removed)
	}

	snapshot := s.cache.Snapshot()
	allocation := optimizer.Optimize(snapshot, s.riskCfg, s.liveBankroll(ctx))
	durationMs := time.Since(started).Milliseconds()

	s.mu.Lock()
	if s.state == StateScanning {
		// Stop during the cycle leaves the stopped state in place
		s.state = StateIdle
	}
	s.cycleCount++
	s.lastScanAt = now
	s.lastDurationMs = durationMs
	s.lastAllocation = allocation
	s.mu.Unlock()

	s.bus.Publish(models.EventScanCompleted, models.ScanCompletedEvent{
		Opportunities: snapshot,
		Allocation:    allocation,
		ScanTimeMs:    durationMs,
	})

	log.Printf("[Scanner] cycle complete: %d live, %d selected, %dms",
		len(snapshot), len(allocation.Opportunities), durationMs)
	return nil
}

// fanOut fetches all sources in parallel and merges successful batches into
// the cache. One source's failure never cancels or corrupts its siblings.
func (s *Scanner) fanOut(ctx context.Context) {
	var wg sync.WaitGroup

	for _, adapter := range s.registry.All() {
		wg.Add(1)
		go func(adapter contracts.SourceAdapter) {
			defer wg.Done()
			s.fetchOne(ctx, adapter)
		}(adapter)
	}

	wg.Wait()
}

// fetchOne runs a single adapter under the per-adapter timeout
func (s *Scanner) fetchOne(ctx context.Context, adapter contracts.SourceAdapter) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	candidates, err := adapter.FetchCandidates(fetchCtx)
	if err != nil {
		log.Printf("[Scanner] source %s failed: %v", adapter.Key(), err)
		s.recordFailure(adapter.Key())
		s.bus.Publish(models.EventScanError, models.ScanErrorEvent{
			Source: adapter.Key(),
			Error:  err.Error(),
		})
		return
	}

	s.recordSuccess(adapter.Key())
	opportunities := s.norm.NormalizeBatch(candidates, adapter.Key(), adapter.Type())
	s.cache.Merge(opportunities)
}

// liveBankroll asks the provider for the current balance; zero falls back to
// the reference bankroll inside the optimizer
func (s *Scanner) liveBankroll(ctx context.Context) float64 {
	if s.bankroll == nil {
		return 0
	}
	balance, err := s.bankroll.CurrentBalance(ctx)
	if err != nil {
		log.Printf("[Scanner] bankroll provider failed, using reference: %v", err)
		return 0
	}
	return balance
}

func (s *Scanner) recordFailure(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceFailures[source]++
}

func (s *Scanner) recordSuccess(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceFailures[source] = 0
}
