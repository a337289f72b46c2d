package optm

// Domain weights of the composite score.
const (
	weightBiomarker  = 40.0
	weightAnatomical = 30.0
	weightMobility   = 20.0
	weightImaging    = 10.0
)

// CompositeScore is the weighted aggregate improvement across domains.
type CompositeScore struct {
	Score    float64             `json:"score"`
	Category ImprovementCategory `json:"category"`
}

// CalculateCompositeImprovement averages each domain's improvements and
// combines the means with fixed weights. Domains without data are left out of
// both the weighted sum and the weight total, so the remaining weights are
// renormalised. With no data at all the score is 0 and the category no-change.
func CalculateCompositeImprovement(biomarker, anatomical, mobility, imaging []float64) CompositeScore {
	domains := []struct {
		values []float64
		weight float64
	}{
		{biomarker, weightBiomarker},
		{anatomical, weightAnatomical},
		{mobility, weightMobility},
		{imaging, weightImaging},
	}

	var weighted, totalWeight float64
	for _, d := range domains {
		if len(d.values) == 0 {
			continue
		}
		weighted += mean(d.values) * d.weight
		totalWeight += d.weight
	}

	if totalWeight == 0 {
		return CompositeScore{Score: 0, Category: ImprovementNoChange}
	}
	score := weighted / totalWeight
	return CompositeScore{Score: score, Category: CalculateImprovementCategory(score)}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func percentages(records []AnalysisRecord) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ImprovementPercentage)
	}
	return out
}
