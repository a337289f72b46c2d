package optm

// CalculateImprovement returns the signed relative change between two
// readings, in percent. Positive values always mean clinical improvement:
// for lower-is-better measurements a drop is reported as a gain.
// A zero previous value yields 0 instead of an infinite change.
func CalculateImprovement(current, previous float64, lowerIsBetter bool) float64 {
	if previous == 0 {
		return 0
	}
	if lowerIsBetter {
		return (previous - current) / previous * 100
	}
	return (current - previous) / previous * 100
}

// CalculateImprovementCategory maps a percentage onto its tier. Each tier is
// inclusive at its lower bound. The same thresholds apply to composite scores,
// which may be negative or exceed 100.
func CalculateImprovementCategory(percentage float64) ImprovementCategory {
	switch {
	case percentage >= 75:
		return ImprovementSignificant
	case percentage >= 50:
		return ImprovementModerate
	case percentage >= 25:
		return ImprovementMinimal
	case percentage > 0:
		return ImprovementNoChange
	default:
		return ImprovementDeterioration
	}
}

// improvementPhrase renders a category as it appears in generated notes.
func improvementPhrase(cat ImprovementCategory, pct float64) string {
	switch cat {
	case ImprovementSignificant:
		return "Significant improvement of " + formatPercent(pct) + " since the previous assessment."
	case ImprovementModerate:
		return "Moderate improvement of " + formatPercent(pct) + " since the previous assessment."
	case ImprovementMinimal:
		return "Minimal improvement of " + formatPercent(pct) + " since the previous assessment."
	case ImprovementNoChange:
		return "No meaningful change since the previous assessment (" + formatPercent(pct) + ")."
	default:
		if pct == 0 {
			return "Unchanged since the previous assessment."
		}
		return "Deterioration of " + formatPercent(-pct) + " since the previous assessment."
	}
}
