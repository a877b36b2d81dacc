package domain

import (
	"sort"

	"github.com/google/uuid"
)

// Credit applies a crediting model to an opportunity's touchpoints.
//
// The input does not need to be pre-sorted; ordering is always derived from
// (AddedAt, CreatedAt) so repeated calls over the same facts produce the same
// assignments. An empty touchpoint set credits nobody.
//
// Linear splits across distinct campaigns, not membership rows. When the
// amount does not divide evenly, the remainder cents go to the
// earliest-touched campaign so the assignment total always equals the
// opportunity amount.
func Credit(touchpoints []Touchpoint, amountCents int64, model Model) []Assignment {
	if len(touchpoints) == 0 {
		return nil
	}

	ordered := sortedTouchpoints(touchpoints)

	switch model {
	case ModelLastTouch:
		return []Assignment{{
			CampaignID:  ordered[len(ordered)-1].CampaignID,
			AmountCents: amountCents,
		}}
	case ModelLinear:
		campaigns := distinctCampaignsByEarliestTouch(ordered)
		n := int64(len(campaigns))
		share := amountCents / n
		remainder := amountCents - share*n

		assignments := make([]Assignment, len(campaigns))
		for i, campaignID := range campaigns {
			credit := share
			if i == 0 {
				credit += remainder
			}
			assignments[i] = Assignment{CampaignID: campaignID, AmountCents: credit}
		}
		return assignments
	default:
		// first_touch
		return []Assignment{{
			CampaignID:  ordered[0].CampaignID,
			AmountCents: amountCents,
		}}
	}
}

// WinningTouchpoint returns the touchpoint that the first-touch model selects,
// or false when there are none. The store manager persists this selection.
func WinningTouchpoint(touchpoints []Touchpoint) (Touchpoint, bool) {
	if len(touchpoints) == 0 {
		return Touchpoint{}, false
	}
	return sortedTouchpoints(touchpoints)[0], true
}

func sortedTouchpoints(touchpoints []Touchpoint) []Touchpoint {
	ordered := make([]Touchpoint, len(touchpoints))
	copy(ordered, touchpoints)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].AddedAt.Equal(ordered[j].AddedAt) {
			return ordered[i].AddedAt.Before(ordered[j].AddedAt)
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

// distinctCampaignsByEarliestTouch preserves first-seen order of an already
// sorted touchpoint slice, so index 0 is the earliest-touched campaign.
func distinctCampaignsByEarliestTouch(ordered []Touchpoint) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ordered))
	campaigns := make([]uuid.UUID, 0, len(ordered))
	for _, tp := range ordered {
		if seen[tp.CampaignID] {
			continue
		}
		seen[tp.CampaignID] = true
		campaigns = append(campaigns, tp.CampaignID)
	}
	return campaigns
}
