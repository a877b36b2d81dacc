// Package handler exposes the marketing module over HTTP.
package handler

import (
	"net/http"
	"time"

	"crm_marketing_backend/internal/marketing/attribution"
	"crm_marketing_backend/internal/marketing/decision"
	"crm_marketing_backend/internal/marketing/insights"
	"crm_marketing_backend/internal/marketing/reporting"
	"crm_marketing_backend/internal/marketing/transport"
	"crm_marketing_backend/platform/httpkit"
	"crm_marketing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for marketing attribution and insights.
type Handler struct {
	attributionSvc *attribution.Service
	insightsSvc    *insights.Service
	decisionSvc    *decision.Service
	reportingSvc   *reporting.Service
	val            *validator.Validator
}

// New creates a new marketing handler.
func New(
	attributionSvc *attribution.Service,
	insightsSvc *insights.Service,
	decisionSvc *decision.Service,
	reportingSvc *reporting.Service,
	val *validator.Validator,
) *Handler {
	return &Handler{
		attributionSvc: attributionSvc,
		insightsSvc:    insightsSvc,
		decisionSvc:    decisionSvc,
		reportingSvc:   reportingSvc,
		val:            val,
	}
}

// RegisterRoutes registers the marketing routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/attribution/recompute/:opportunityId", h.RecomputeAttribution)
	rg.GET("/attribution/explain/:opportunityId", h.ExplainAttribution)
	rg.GET("/attribution/summary", h.AttributionSummary)
	rg.POST("/campaigns/:id/members", h.AddMember)
	rg.DELETE("/campaigns/:id/members/:memberId", h.RemoveMember)
	rg.GET("/campaigns/:id/health", h.CampaignHealth)
	rg.GET("/campaigns/:id/recommendations", h.CampaignRecommendations)
	rg.POST("/recommendations/:id/decision", h.DecideRecommendation)
	rg.GET("/recommendations/pilot-metrics", h.PilotMetrics)
}

func (h *Handler) RecomputeAttribution(c *gin.Context) {
	opportunityID, err := uuid.Parse(c.Param("opportunityId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.attributionSvc.RecomputeForOpportunity(c.Request.Context(), opportunityID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "recomputed"})
}

func (h *Handler) ExplainAttribution(c *gin.Context) {
	opportunityID, err := uuid.Parse(c.Param("opportunityId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	explanation, err := h.attributionSvc.Explain(c.Request.Context(), opportunityID)
	if httpkit.HandleError(c, err) {
		return
	}

	candidates := make([]transport.ExplanationCandidateResponse, 0, len(explanation.Candidates))
	for _, cand := range explanation.Candidates {
		candidates = append(candidates, transport.ExplanationCandidateResponse{
			EntityType:   cand.EntityType,
			EntityID:     cand.EntityID,
			CampaignID:   cand.CampaignID,
			CampaignName: cand.CampaignName,
			AddedAt:      cand.AddedAt,
		})
	}
	httpkit.OK(c, transport.ExplanationResponse{
		OpportunityID: explanation.OpportunityID,
		CampaignID:    explanation.CampaignID,
		Model:         explanation.Model,
		RuleVersion:   explanation.RuleVersion,
		AttributedAt:  explanation.AttributedAt,
		Evidence:      explanation.Evidence,
		Candidates:    candidates,
	})
}

func (h *Handler) AttributionSummary(c *gin.Context) {
	model := c.DefaultQuery("model", "first_touch")

	summary, err := h.reportingSvc.Summary(c.Request.Context(), model)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, summary)
}

func (h *Handler) AddMember(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if req.ResponseStatus == "" {
		req.ResponseStatus = "Sent"
	}

	membership, err := h.attributionSvc.AddMember(c.Request.Context(), campaignID, attribution.AddMemberParams{
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		ResponseStatus: req.ResponseStatus,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.MembershipResponse{
		ID:             membership.ID,
		CampaignID:     membership.CampaignID,
		EntityType:     membership.EntityType,
		EntityID:       membership.EntityID,
		ResponseStatus: membership.ResponseStatus,
		AddedAt:        membership.AddedAt,
	})
}

func (h *Handler) RemoveMember(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	memberID, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.attributionSvc.RemoveMember(c.Request.Context(), campaignID, memberID); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "removed"})
}

func (h *Handler) CampaignHealth(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.insightsSvc.Score(c.Request.Context(), campaignID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.HealthResponse{
		CampaignID:  result.CampaignID,
		Score:       result.Score,
		Trend:       result.Trend,
		WindowDays:  result.WindowDays,
		ReasonChips: result.ReasonChips,
		Metrics:     result.Metrics,
		ComputedAt:  result.ComputedAt,
	})
}

func (h *Handler) CampaignRecommendations(c *gin.Context) {
	campaignID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	recommendations, err := h.insightsSvc.Recommendations(c.Request.Context(), campaignID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.RecommendationResponse, 0, len(recommendations))
	for _, rec := range recommendations {
		out = append(out, transport.RecommendationResponse{
			ID:          rec.ID,
			CampaignID:  rec.CampaignID,
			RuleKey:     rec.RuleKey,
			Severity:    rec.Severity,
			Title:       rec.Title,
			Message:     rec.Message,
			ImpactCents: rec.ImpactCents,
			Confidence:  rec.Confidence,
			Evidence:    rec.Evidence,
			Status:      rec.Status,
		})
	}
	httpkit.OK(c, gin.H{"recommendations": out})
}

func (h *Handler) DecideRecommendation(c *gin.Context) {
	recommendationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.decisionSvc.ApplyDecision(c.Request.Context(), decision.ApplyParams{
		RecommendationID: recommendationID,
		Action:           req.Action,
		Notes:            req.Notes,
		ActorID:          req.ActorID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.DecisionResponse{
		RecommendationID: result.RecommendationID,
		CampaignID:       result.CampaignID,
		RuleKey:          result.RuleKey,
		Status:           result.Status,
		DecidedAt:        result.DecidedAt,
		FollowUpTaskID:   result.FollowUpTaskID,
		TaskCreated:      result.TaskCreated,
	})
}

func (h *Handler) PilotMetrics(c *gin.Context) {
	windowStart, ok := parseTimeQuery(c, "windowStart")
	if !ok {
		return
	}
	windowEnd, ok := parseTimeQuery(c, "windowEnd")
	if !ok {
		return
	}

	metrics, err := h.reportingSvc.Pilot(c.Request.Context(), windowStart, windowEnd)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, metrics)
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid "+name+" timestamp", nil)
		return time.Time{}, false
	}
	return t, true
}
