package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RecommendationCap bounds how many recommendations one campaign can carry.
const RecommendationCap = 5

// Rule keys. Each key fires at most once per campaign, and together with the
// campaign id fully determines the recommendation's identity.
const (
	RulePauseLowEfficiency    = "pause_low_efficiency"
	RuleReengageStalled       = "reengage_stalled_opportunities"
	RuleIncreaseBudget        = "increase_budget_high_velocity"
	RuleReallocateNoInfluence = "reallocate_budget_no_influence"
	RuleImproveResponseRate   = "improve_response_rate"
	RuleMonitorSteadyState    = "monitor_steady_state"
)

// recommendationNamespace seeds uuid.NewSHA1 so recommendation ids are stable
// across processes. Never change this value; stored decisions reference ids
// derived from it.
var recommendationNamespace = uuid.MustParse("7a1d3f7e-9c41-4f7b-a2e5-0c6de15b8f21")

// Recommendation is a derived, never-persisted advice item. Identity is a
// stable function of (campaign, rule), so recomputing over unchanged facts
// yields the same id and callers can hold ids across requests.
type Recommendation struct {
	ID          uuid.UUID
	CampaignID  uuid.UUID
	RuleKey     string
	Severity    string
	Title       string
	Message     string
	ImpactCents int64
	Confidence  float64
	Evidence    []string
	Status      string
}

// RecommendationID derives the reproducible id for a campaign/rule pair.
func RecommendationID(campaignID uuid.UUID, ruleKey string) uuid.UUID {
	return uuid.NewSHA1(recommendationNamespace, append(campaignID[:], []byte(ruleKey)...))
}

// DeriveRecommendations evaluates every rule against the campaign facts and
// returns at most RecommendationCap entries ordered by confidence, then
// estimated impact. Every entry carries non-empty evidence. The result is a
// pure function of (facts, now truncated to day granularity by the stalled
// check); statuses are left as StatusPending for the caller to overlay.
func DeriveRecommendations(facts CampaignFacts, now time.Time) []Recommendation {
	var out []Recommendation

	planned := facts.BudgetPlannedCents
	actual := facts.BudgetActualCents
	wonRevenue := facts.WonRevenueCents()

	if planned > 0 && float64(actual) > float64(planned)*1.15 && wonRevenue < actual {
		overrun := actual - planned
		out = append(out, build(facts.CampaignID, RulePauseLowEfficiency, "warn",
			"Pause spend until efficiency improves",
			"Spend is running ahead of plan while won revenue has not caught up.",
			overrun, 0.78,
			fmt.Sprintf("budget actual %d exceeds plan %d (cents)", actual, planned),
			fmt.Sprintf("won revenue currently %d cents", wonRevenue),
		))
	}

	stalled := stalledOpen(facts.Opportunities, now)
	if len(stalled) >= 2 {
		var atRisk int64
		for _, o := range stalled {
			atRisk += o.AmountCents
		}
		out = append(out, build(facts.CampaignID, RuleReengageStalled, "info",
			"Re-engage stalled influenced opportunities",
			"Create follow-up tasks for owners on stale, open influenced opportunities.",
			atRisk, 0.86,
			fmt.Sprintf("%d open influenced deals older than %d days since attribution", len(stalled), StalledAgeDays),
			fmt.Sprintf("pipeline at risk: %d cents", atRisk),
		))
	}

	if facts.InfluencedCount() > 0 && facts.ConversionRatePct() >= 30 && float64(actual) < float64(planned)*0.7 {
		headroom := planned - actual
		if headroom < 0 {
			headroom = 0
		}
		out = append(out, build(facts.CampaignID, RuleIncreaseBudget, "success",
			"Increase budget on winning campaign",
			"This campaign converts well and still has underutilized budget capacity.",
			headroom, 0.72,
			fmt.Sprintf("conversion rate is %.2f%%", facts.ConversionRatePct()),
			fmt.Sprintf("budget actual %d cents is below 70%% of plan", actual),
		))
	}

	if actual > 0 && facts.InfluencedCount() == 0 {
		out = append(out, build(facts.CampaignID, RuleReallocateNoInfluence, "danger",
			"Reallocate spend to performing campaigns",
			"No influenced opportunities found despite campaign spend.",
			actual, 0.67,
			"no influenced opportunities are currently attributed",
			fmt.Sprintf("campaign actual spend: %d cents", actual),
		))
	}

	if facts.MemberCount >= 5 && facts.ResponseRatePct() < 10 {
		out = append(out, build(facts.CampaignID, RuleImproveResponseRate, "warn",
			"Improve audience targeting or messaging",
			"Engagement is well below target for the current member base.",
			0, 0.69,
			fmt.Sprintf("response rate is %.2f%% across %d members", facts.ResponseRatePct(), facts.MemberCount),
		))
	}

	if len(out) == 0 {
		out = append(out, build(facts.CampaignID, RuleMonitorSteadyState, "secondary",
			"Maintain current mix and monitor weekly",
			"No critical anomalies detected. Keep monitoring momentum and conversion quality.",
			0, 0.61,
			"no urgent risk signal exceeded threshold",
		))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ImpactCents > out[j].ImpactCents
	})

	if len(out) > RecommendationCap {
		out = out[:RecommendationCap]
	}
	return out
}

func build(campaignID uuid.UUID, ruleKey, severity, title, message string, impactCents int64, confidence float64, evidence ...string) Recommendation {
	return Recommendation{
		ID:          RecommendationID(campaignID, ruleKey),
		CampaignID:  campaignID,
		RuleKey:     ruleKey,
		Severity:    severity,
		Title:       title,
		Message:     message,
		ImpactCents: impactCents,
		Confidence:  confidence,
		Evidence:    evidence,
		Status:      StatusPending,
	}
}

// stalledOpen mirrors the recommendation rule's staleness test: open deals
// attributed at least StalledAgeDays ago.
func stalledOpen(opps []InfluencedOpportunity, now time.Time) []InfluencedOpportunity {
	var out []InfluencedOpportunity
	for _, o := range opps {
		if o.IsClosed {
			continue
		}
		if now.Sub(o.AttributedAt) >= StalledAgeDays*24*time.Hour {
			out = append(out, o)
		}
	}
	return out
}
