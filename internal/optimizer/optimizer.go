package optimizer

import (
	"sort"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/betmath"
	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// Diversity targets: spread across this many distinct categories earns the
// full score for the term.
const (
	targetSports  = 4
	targetTypes   = 3
	targetSources = 3
)

// Optimize selects and sizes a bounded, diversified subset of the opportunity
// snapshot under the risk configuration. Deterministic and side-effect-free:
// identical snapshot + config + bankroll always yield the same allocation.
//
// Selection:
// 1. Filter candidates below the confidence floor
// 2. Rank by composite score (EV × confidence), safer risk level and earlier
//    creation breaking ties
// 3. Greedily admit while under maxPositions and the aggregate Kelly cap -
//    an opportunity that would overflow the cap is skipped whole, never
//    truncated
// 4. Stake each admitted opportunity at bankroll × kellyFraction
func Optimize(snapshot []models.Opportunity, config models.RiskConfig, bankroll float64) models.PortfolioAllocation {
	if bankroll <= 0 {
		bankroll = config.BaseBankroll
	}

	candidates := make([]models.Opportunity, 0, len(snapshot))
	for _, opp := range snapshot {
		if opp.Confidence < config.MinConfidence {
			continue
		}
		candidates = append(candidates, opp)
	}

	sort.Slice(candidates, func(i, j int) bool {
		si, sj := candidates[i].Score(), candidates[j].Score()
		if si != sj {
			return si > sj
		}
		ri, rj := candidates[i].RiskLevel.Rank(), candidates[j].RiskLevel.Rank()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	selected := make([]models.Opportunity, 0, config.MaxPositions)
	allocation := make(map[string]float64)
	totalEV := 0.0
	totalKelly := 0.0

	for _, opp := range candidates {
		if len(selected) >= config.MaxPositions {
			break
		}
		if totalKelly+opp.KellyFraction > config.MaxExposure {
			// All-or-nothing: skip rather than trim the stake to fit
			continue
		}

		selected = append(selected, opp)
		allocation[opp.ID] = betmath.Round(bankroll * opp.KellyFraction)
		totalEV += opp.ExpectedValue
		totalKelly += opp.KellyFraction
	}

	return models.PortfolioAllocation{
		Opportunities:        selected,
		TotalExpectedValue:   totalEV,
		TotalKellyFraction:   totalKelly,
		RiskScore:            riskScore(selected),
		DiversificationScore: diversificationScore(selected),
		Allocation:           allocation,
		Constraints: models.AllocationConstraints{
			MaxSingleBet:     config.MaxSingleBet,
			MaxTotalExposure: config.MaxTotalExposure,
			MinConfidence:    config.MinConfidence,
		},
	}
}

// riskScore rates the admitted set on a 0-100 scale where lower is safer.
// Low confidence is penalized; moderate Kelly sizing is rewarded over
// aggressive sizing.
//
// Formula: max(0, 100 - (avgConfidence×50 + (1 - avgKelly×10)×50))
func riskScore(selected []models.Opportunity) float64 {
	if len(selected) == 0 {
		return 0
	}

	var sumConfidence, sumKelly float64
	for _, opp := range selected {
		sumConfidence += opp.Confidence
		sumKelly += opp.KellyFraction
	}
	avgConfidence := sumConfidence / float64(len(selected))
	avgKelly := sumKelly / float64(len(selected))

	score := 100.0 - (avgConfidence*50.0 + (1.0-avgKelly*10.0)*50.0)
	if score < 0 {
		return 0
	}
	return score
}

// diversificationScore rewards spread across sports, opportunity types, and
// sources, weighted 40/30/30. Each term saturates at its target distinct count.
func diversificationScore(selected []models.Opportunity) float64 {
	if len(selected) == 0 {
		return 0
	}

	sports := make(map[string]struct{})
	types := make(map[models.OpportunityType]struct{})
	sources := make(map[string]struct{})
	for _, opp := range selected {
		sports[opp.SportKey] = struct{}{}
		types[opp.Type] = struct{}{}
		sources[opp.Source] = struct{}{}
	}

	return diversityTerm(len(sports), targetSports)*40.0 +
		diversityTerm(len(types), targetTypes)*30.0 +
		diversityTerm(len(sources), targetSources)*30.0
}

// diversityTerm returns distinct/target clamped to 1.0
func diversityTerm(distinct, target int) float64 {
	term := float64(distinct) / float64(target)
	if term > 1.0 {
		return 1.0
	}
	return term
}
