package engine

// Adaptive difficulty hints returned after an answer submission. The
// bands are our choice; what matters is that high self-reported
// confidence pushes toward harder material, low confidence toward
// easier, and the middle stays silent.
const (
	AdjustHarder = "harder"
	AdjustEasier = "easier"

	confidenceHardFloor = 75
	confidenceEasyCeil  = 40
)

// AdaptiveHint derives the difficulty adjustment for upcoming
// questions from the self-reported confidence of the latest answer
// (0-100). Returns "" when no confidence was reported or the value
// falls in the neutral band.
func AdaptiveHint(confidence *int) string {
	if confidence == nil {
		return ""
	}
	switch {
	case *confidence >= confidenceHardFloor:
		return AdjustHarder
	case *confidence <= confidenceEasyCeil:
		return AdjustEasier
	default:
		return ""
	}
}
