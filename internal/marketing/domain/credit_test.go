package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func tp(campaignID uuid.UUID, addedAt time.Time) Touchpoint {
	return Touchpoint{
		MembershipID: uuid.New(),
		CampaignID:   campaignID,
		EntityType:   EntityTypeLead,
		EntityID:     uuid.New(),
		AddedAt:      addedAt,
		CreatedAt:    addedAt,
	}
}

func TestCreditEmptyTouchpoints(t *testing.T) {
	if got := Credit(nil, 100000, ModelFirstTouch); got != nil {
		t.Fatalf("expected nil assignments for empty touchpoints, got %v", got)
	}
}

func TestCreditFirstTouch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()

	// deliberately out of order
	touchpoints := []Touchpoint{
		tp(campaignB, base.Add(48*time.Hour)),
		tp(campaignA, base),
	}

	got := Credit(touchpoints, 120000, ModelFirstTouch)
	if len(got) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(got))
	}
	if got[0].CampaignID != campaignA {
		t.Fatalf("first touch should credit the earliest campaign")
	}
	if got[0].AmountCents != 120000 {
		t.Fatalf("expected full amount 120000, got %d", got[0].AmountCents)
	}
}

func TestCreditLastTouch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()

	touchpoints := []Touchpoint{
		tp(campaignA, base),
		tp(campaignB, base.Add(time.Hour)),
	}

	got := Credit(touchpoints, 100000, ModelLastTouch)
	if len(got) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(got))
	}
	if got[0].CampaignID != campaignB {
		t.Fatalf("last touch should credit the latest campaign")
	}
	if got[0].AmountCents != 100000 {
		t.Fatalf("expected full amount, got %d", got[0].AmountCents)
	}
}

func TestCreditLinearEvenSplit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()

	touchpoints := []Touchpoint{
		tp(campaignA, base),
		tp(campaignB, base.Add(time.Hour)),
	}

	got := Credit(touchpoints, 120000, ModelLinear)
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(got))
	}
	for _, a := range got {
		if a.AmountCents != 60000 {
			t.Fatalf("expected even 60000 split, got %d for %s", a.AmountCents, a.CampaignID)
		}
	}
}

func TestCreditLinearRemainderToEarliest(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()
	campaignC := uuid.New()

	touchpoints := []Touchpoint{
		tp(campaignB, base.Add(time.Hour)),
		tp(campaignA, base),
		tp(campaignC, base.Add(2*time.Hour)),
	}

	got := Credit(touchpoints, 1000, ModelLinear)
	if len(got) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(got))
	}
	if got[0].CampaignID != campaignA || got[0].AmountCents != 334 {
		t.Fatalf("remainder cent should go to the earliest-touched campaign, got %d for %s", got[0].AmountCents, got[0].CampaignID)
	}

	var total int64
	for _, a := range got {
		total += a.AmountCents
	}
	if total != 1000 {
		t.Fatalf("assignments must sum to the opportunity amount, got %d", total)
	}
}

func TestCreditLinearDeduplicatesCampaigns(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()

	// campaign A touched twice via different memberships
	touchpoints := []Touchpoint{
		tp(campaignA, base),
		tp(campaignA, base.Add(time.Minute)),
		tp(campaignB, base.Add(time.Hour)),
	}

	got := Credit(touchpoints, 100000, ModelLinear)
	if len(got) != 2 {
		t.Fatalf("linear splits across distinct campaigns, expected 2 assignments, got %d", len(got))
	}
	if got[0].CampaignID != campaignA || got[0].AmountCents != 50000 {
		t.Fatalf("unexpected first assignment: %+v", got[0])
	}
}

func TestCreditTieBreaksOnCreatedAt(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()

	first := tp(campaignA, at)
	first.CreatedAt = at
	second := tp(campaignB, at)
	second.CreatedAt = at.Add(time.Second)

	got := Credit([]Touchpoint{second, first}, 5000, ModelFirstTouch)
	if got[0].CampaignID != campaignA {
		t.Fatalf("equal added_at must tie-break on created_at")
	}
}

func TestWinningTouchpoint(t *testing.T) {
	if _, ok := WinningTouchpoint(nil); ok {
		t.Fatalf("no touchpoints should yield no winner")
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	campaignA := uuid.New()
	campaignB := uuid.New()
	winner, ok := WinningTouchpoint([]Touchpoint{
		tp(campaignB, base.Add(time.Hour)),
		tp(campaignA, base),
	})
	if !ok || winner.CampaignID != campaignA {
		t.Fatalf("winner should be the earliest touchpoint")
	}
}
