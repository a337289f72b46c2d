package optm

import "strings"

// recommendationInput is what every recommendation rule may inspect.
type recommendationInput struct {
	stage     TreatmentStage
	result    *AnalysisResult
	composite CompositeScore
}

// recommendationRule is one independent predicate/output pair. Rules do not
// exclude each other; every matching rule contributes its recommendations.
type recommendationRule struct {
	name    string
	applies func(in recommendationInput) bool
	build   func(in recommendationInput) []Recommendation
}

// recommendationRules are evaluated in order.
var recommendationRules = []recommendationRule{
	{
		name:    "inflammatory-markers-elevated",
		applies: hasElevatedInflammatoryMarker,
		build: func(recommendationInput) []Recommendation {
			return []Recommendation{
				{
					Category:    RecMedication,
					Description: "Inflammatory markers are elevated. Review anti-inflammatory therapy and consider adjusting the current medication plan.",
					Priority:    PriorityHigh,
				},
				{
					Category:    RecLifestyle,
					Description: "Adopt an anti-inflammatory diet rich in omega-3 fatty acids, prioritise sleep and reduce physical and psychological stressors.",
					Priority:    PriorityMedium,
				},
			}
		},
	},
	{
		name:    "knee-mobility-lagging",
		applies: func(in recommendationInput) bool { return hasLaggingMobility(in.result, "Knee") },
		build: func(recommendationInput) []Recommendation {
			return []Recommendation{{
				Category:    RecExercise,
				Description: "Knee range of motion is improving slowly. Intensify knee ROM work with daily flexion/extension mobilisation and quadriceps activation.",
				Priority:    PriorityHigh,
			}}
		},
	},
	{
		name:    "pelvic-mobility-lagging",
		applies: func(in recommendationInput) bool { return hasLaggingMobility(in.result, "Pelvic") },
		build: func(recommendationInput) []Recommendation {
			return []Recommendation{{
				Category:    RecExercise,
				Description: "Pelvic alignment is not improving as expected. Add core stabilisation exercises targeting the deep abdominals and gluteal muscles.",
				Priority:    PriorityMedium,
			}}
		},
	},
	{
		name:    "follow-up-cadence",
		applies: func(recommendationInput) bool { return true },
		build: func(in recommendationInput) []Recommendation {
			if in.composite.Category == ImprovementSignificant || in.composite.Category == ImprovementModerate {
				return []Recommendation{{
					Category:    RecFollowUp,
					Description: "Schedule a follow-up assessment in 4 weeks to confirm continued progress.",
					Priority:    PriorityMedium,
				}}
			}
			return []Recommendation{{
				Category:    RecFollowUp,
				Description: "Schedule a follow-up assessment in 2 weeks to re-evaluate the treatment plan.",
				Priority:    PriorityHigh,
			}}
		},
	},
	{
		name:    "treatment-stage",
		applies: func(recommendationInput) bool { return true },
		build: func(in recommendationInput) []Recommendation {
			return []Recommendation{stageRecommendation(in.stage)}
		},
	},
}

// GenerateRecommendations runs every rule in order against the analyzer output
// and composite score and returns the concatenated recommendations.
func GenerateRecommendations(stage TreatmentStage, result *AnalysisResult, composite CompositeScore) []Recommendation {
	in := recommendationInput{stage: stage, result: result, composite: composite}
	recs := make([]Recommendation, 0, len(recommendationRules)+1)
	for _, rule := range recommendationRules {
		if rule.applies(in) {
			recs = append(recs, rule.build(in)...)
		}
	}
	return recs
}

var inflammatoryMarkers = map[string]bool{"crp": true, "il6": true, "tnfAlpha": true}

func hasElevatedInflammatoryMarker(in recommendationInput) bool {
	if in.result == nil {
		return false
	}
	for _, r := range in.result.BiomarkerAnalysis {
		if inflammatoryMarkers[r.Identifier] && r.Status != nil && *r.Status == StatusElevated {
			return true
		}
	}
	return false
}

func hasLaggingMobility(result *AnalysisResult, joint string) bool {
	if result == nil {
		return false
	}
	for _, r := range result.MobilityAnalysis {
		if !strings.Contains(r.Identifier, joint) {
			continue
		}
		switch r.Improvement {
		case ImprovementMinimal, ImprovementNoChange, ImprovementDeterioration:
			return true
		}
	}
	return false
}

// stageRecommendation returns the single stage-specific recommendation.
// Unknown stages get the initial-stage program.
func stageRecommendation(stage TreatmentStage) Recommendation {
	switch stage {
	case StageIntermediate:
		return Recommendation{
			Category:    RecExercise,
			Description: "Progress to resistance training with gradually increasing load to rebuild strength around the affected joints.",
			Priority:    PriorityHigh,
		}
	case StageAdvanced:
		return Recommendation{
			Category:    RecExercise,
			Description: "Integrate functional movement patterns such as squats, lunges and stair climbing to restore everyday capacity.",
			Priority:    PriorityHigh,
		}
	case StageMaintenance:
		return Recommendation{
			Category:    RecExercise,
			Description: "Continue the home exercise program to maintain the mobility and strength gains achieved.",
			Priority:    PriorityMedium,
		}
	default:
		return Recommendation{
			Category:    RecExercise,
			Description: "Begin gentle range-of-motion exercises within pain-free limits to restore joint mobility.",
			Priority:    PriorityHigh,
		}
	}
}
