package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// HealthWindowDays is the lookback window reported with each snapshot.
	HealthWindowDays = 30
	// StalledAgeDays is the age at which an open influenced deal counts as stalled.
	StalledAgeDays = 21
)

// CampaignFacts is the deterministic fact base shared by the health scorer
// and the recommendation rules. Services load it once per campaign per call.
type CampaignFacts struct {
	CampaignID         uuid.UUID
	Name               string
	Status             string
	OwnerUserID        uuid.UUID
	BudgetPlannedCents int64
	BudgetActualCents  int64
	MemberCount        int
	RespondedCount     int
	Opportunities      []InfluencedOpportunity
}

// InfluencedOpportunity is one opportunity carrying an active first-touch
// attribution to the campaign.
type InfluencedOpportunity struct {
	OpportunityID  uuid.UUID
	Name           string
	OwnerID        uuid.UUID
	AmountCents    int64
	IsClosed       bool
	IsWon          bool
	AttributedAt   time.Time
	LastActivityAt time.Time
}

// HealthMetrics are the numeric inputs behind a health score, persisted with
// each snapshot for auditability.
type HealthMetrics struct {
	InfluencedOpportunities int     `json:"influencedOpportunities"`
	InfluencedPipelineCents int64   `json:"influencedPipelineCents"`
	WonRevenueCents         int64   `json:"wonRevenueCents"`
	StalledOpenDeals        int     `json:"stalledOpenDeals"`
	WinRatePct              float64 `json:"winRatePct"`
	ResponseRatePct         float64 `json:"responseRatePct"`
	BudgetVariancePct       float64 `json:"budgetVariancePct"`
}

// HealthScore is the result of scoring one campaign at one instant.
type HealthScore struct {
	Score       int
	ReasonChips []string
	Metrics     HealthMetrics
}

// InfluencedCount returns the number of distinct influenced opportunities.
func (f CampaignFacts) InfluencedCount() int { return len(f.Opportunities) }

// PipelineCents sums attributed amounts across influenced opportunities.
func (f CampaignFacts) PipelineCents() int64 {
	var total int64
	for _, o := range f.Opportunities {
		total += o.AmountCents
	}
	return total
}

// WonRevenueCents sums attributed amounts of closed-won influenced opportunities.
func (f CampaignFacts) WonRevenueCents() int64 {
	var total int64
	for _, o := range f.Opportunities {
		if o.IsClosed && o.IsWon {
			total += o.AmountCents
		}
	}
	return total
}

// WinRatePct is closed-won influenced opportunities over all influenced ones.
func (f CampaignFacts) WinRatePct() float64 {
	if len(f.Opportunities) == 0 {
		return 0
	}
	won := 0
	for _, o := range f.Opportunities {
		if o.IsClosed && o.IsWon {
			won++
		}
	}
	return float64(won) / float64(len(f.Opportunities)) * 100
}

// ConversionRatePct is influenced opportunities over campaign members.
func (f CampaignFacts) ConversionRatePct() float64 {
	if f.MemberCount == 0 {
		return 0
	}
	return float64(f.InfluencedCount()) / float64(f.MemberCount) * 100
}

// ResponseRatePct is responded/qualified members over all members.
func (f CampaignFacts) ResponseRatePct() float64 {
	if f.MemberCount == 0 {
		return 0
	}
	return float64(f.RespondedCount) / float64(f.MemberCount) * 100
}

// BudgetVariancePct is spend relative to plan, positive when over budget.
// With no plan, any spend counts as a full overrun.
func (f CampaignFacts) BudgetVariancePct() float64 {
	if f.BudgetPlannedCents <= 0 {
		if f.BudgetActualCents > 0 {
			return 100
		}
		return 0
	}
	return float64(f.BudgetActualCents-f.BudgetPlannedCents) / float64(f.BudgetPlannedCents) * 100
}

// stalledOpenDeals counts open influenced deals without activity for
// StalledAgeDays or more, as of now.
func (f CampaignFacts) stalledOpenDeals(now time.Time) int {
	stalled := 0
	for _, o := range f.Opportunities {
		if o.IsClosed {
			continue
		}
		if now.Sub(o.LastActivityAt) >= StalledAgeDays*24*time.Hour {
			stalled++
		}
	}
	return stalled
}

// ScoreHealth computes the deterministic composite health score for a
// campaign. The score starts at 100 and is adjusted by budget variance,
// stalled open deals, win-rate momentum, engagement, and spend without
// influence, then clamped to [0,100]. Reason chips cover every contributing
// factor; the budget chip is always present, so the list is never empty.
func ScoreHealth(facts CampaignFacts, now time.Time) HealthScore {
	variance := facts.BudgetVariancePct()
	stalled := facts.stalledOpenDeals(now)
	winRate := facts.WinRatePct()
	responseRate := facts.ResponseRatePct()
	influenced := facts.InfluencedCount()

	score := 100.0
	score -= math.Min(math.Abs(variance), 40) * 0.35
	score -= math.Min(float64(stalled)*5, 25)
	score += math.Min(winRate*0.25, 15)
	if influenced == 0 && facts.BudgetActualCents > 0 {
		score -= 10
	}
	if facts.MemberCount >= 5 && responseRate < 10 {
		score -= 10
	}

	final := int(math.Round(score))
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	chips := make([]string, 0, 5)
	switch {
	case variance > 15:
		chips = append(chips, fmt.Sprintf("over budget by %.0f%%", variance))
	case variance < -15:
		chips = append(chips, fmt.Sprintf("under budget by %.0f%%", -variance))
	default:
		chips = append(chips, "budget on track")
	}

	if stalled > 0 {
		chips = append(chips, fmt.Sprintf("%d stalled open deals", stalled))
	}

	if winRate >= 35 {
		chips = append(chips, "strong win-rate momentum")
	} else if influenced > 0 {
		chips = append(chips, "win-rate below target")
	}

	if facts.MemberCount >= 5 && responseRate < 10 {
		chips = append(chips, "low response rate")
	}

	if influenced == 0 && facts.BudgetActualCents > 0 {
		chips = append(chips, "spend without influenced pipeline")
	}

	return HealthScore{
		Score:       final,
		ReasonChips: chips,
		Metrics: HealthMetrics{
			InfluencedOpportunities: influenced,
			InfluencedPipelineCents: facts.PipelineCents(),
			WonRevenueCents:         facts.WonRevenueCents(),
			StalledOpenDeals:        stalled,
			WinRatePct:              round2(winRate),
			ResponseRatePct:         round2(responseRate),
			BudgetVariancePct:       round2(variance),
		},
	}
}

// Trend compares a score with the previous snapshot using a ±2 dead band.
func Trend(previous, current int) string {
	switch {
	case current > previous+2:
		return "up"
	case current < previous-2:
		return "down"
	default:
		return "flat"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
