package entity

// EvidenceKind tags the quality of a recency-classification result.
type EvidenceKind int

const (
	// EvidenceIndeterminate means no usable publication-age signal was found.
	EvidenceIndeterminate EvidenceKind = iota
	// EvidenceApproximate means the age was parsed from natural-language
	// relative-time text ("hace 3 horas").
	EvidenceApproximate
	// EvidenceExact means the age was computed from a machine-readable
	// timestamp embedded in the page.
	EvidenceExact
)

func (k EvidenceKind) String() string {
	switch k {
	case EvidenceExact:
		return "exact"
	case EvidenceApproximate:
		return "approximate"
	default:
		return "indeterminate"
	}
}

// RecencyEvidence is the outcome of attempting to infer a listing's
// publication age. HoursAgo is only meaningful when Kind is Exact or
// Approximate; it is never negative.
type RecencyEvidence struct {
	Kind     EvidenceKind
	HoursAgo float64
}

// Exact builds machine-readable-timestamp evidence, clamping negative
// ages (clock skew, future-dated pages) to zero.
func Exact(hoursAgo float64) RecencyEvidence {
	return RecencyEvidence{Kind: EvidenceExact, HoursAgo: max(0, hoursAgo)}
}

// Approximate builds relative-time-text evidence, clamped to zero.
func Approximate(hoursAgo float64) RecencyEvidence {
	return RecencyEvidence{Kind: EvidenceApproximate, HoursAgo: max(0, hoursAgo)}
}

// Indeterminate reports that no usable signal was found.
func Indeterminate() RecencyEvidence {
	return RecencyEvidence{Kind: EvidenceIndeterminate}
}

// AdmissionDecision records whether a candidate passed the recency
// policy, and which policy mode produced the decision.
type AdmissionDecision struct {
	Admit bool
	Mode  string
}
