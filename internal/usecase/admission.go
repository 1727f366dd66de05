package usecase

import (
	"github.com/user/listing-radar/internal/entity"
)

const (
	// ModeSoft admits listings with no date information: absence of a date
	// is not disqualifying, the pipeline prefers false positives over
	// silently dropping new listings on uncooperative pages.
	ModeSoft = "soft"
	// ModeStrictToday only admits listings with confirmed same-day
	// evidence, trading recall for precision.
	ModeStrictToday = "strict-today"

	// todayWindowHours bounds what "published today" can mean for the
	// strict policy; "ayer" (24h) and anything coarser falls outside it.
	todayWindowHours = 24.0
)

// Admit decides whether recency evidence makes a listing "new enough" to
// notify about. Both modes are monotone in maxAgeHours: raising the
// threshold never revokes an admission.
func Admit(ev entity.RecencyEvidence, maxAgeHours float64, mode string) entity.AdmissionDecision {
	decision := entity.AdmissionDecision{Mode: mode}

	switch mode {
	case ModeStrictToday:
		decision.Admit = ev.Kind != entity.EvidenceIndeterminate &&
			ev.HoursAgo <= maxAgeHours &&
			ev.HoursAgo < todayWindowHours
	default: // soft
		decision.Admit = ev.Kind == entity.EvidenceIndeterminate ||
			ev.HoursAgo <= maxAgeHours
	}
	return decision
}
