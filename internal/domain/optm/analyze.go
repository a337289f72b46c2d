package optm

import (
	"fmt"
	"time"
)

// Analyze compares current against previous and builds the progress report.
// previous may be nil, in which case the report carries empty analyses and an
// insufficient-data summary. Inputs are never modified.
func Analyze(current, previous *PatientSnapshot) *AnalysisResult {
	return AnalyzeAt(current, previous, time.Now().UTC())
}

// AnalyzeAt is Analyze with an explicit report timestamp. Identical inputs
// always produce identical results.
func AnalyzeAt(current, previous *PatientSnapshot, at time.Time) *AnalysisResult {
	result := &AnalysisResult{
		BiomarkerAnalysis:  []AnalysisRecord{},
		AnatomicalAnalysis: []AnalysisRecord{},
		MobilityAnalysis:   []AnalysisRecord{},
		ImagingAnalysis:    []AnalysisRecord{},
		CreatedAt:          at,
	}
	if current == nil {
		result.OverallProgress = OverallProgress{
			Status:  ImprovementNoChange,
			Summary: insufficientDataSummary(""),
		}
		result.Recommendations = GenerateRecommendations(StageInitial, result, CompositeScore{Category: ImprovementNoChange})
		return result
	}
	result.PatientID = current.PatientID

	if recs := AnalyzeBiomarkers(current, previous); recs != nil {
		result.BiomarkerAnalysis = recs
	}
	if recs := AnalyzeAnatomical(current, previous); recs != nil {
		result.AnatomicalAnalysis = recs
	}
	if recs := AnalyzeMobility(current, previous); recs != nil {
		result.MobilityAnalysis = recs
	}
	if recs := AnalyzeImaging(current, previous); recs != nil {
		result.ImagingAnalysis = recs
	}

	biomarkerPcts := percentages(result.BiomarkerAnalysis)
	anatomicalPcts := percentages(result.AnatomicalAnalysis)
	mobilityPcts := percentages(result.MobilityAnalysis)
	imagingPcts := percentages(result.ImagingAnalysis)

	composite := CalculateCompositeImprovement(biomarkerPcts, anatomicalPcts, mobilityPcts, imagingPcts)
	hasData := len(biomarkerPcts)+len(anatomicalPcts)+len(mobilityPcts)+len(imagingPcts) > 0

	summary := insufficientDataSummary(current.Name)
	if hasData {
		summary = progressSummary(composite, current.Name, current.TreatmentStage)
	}
	result.OverallProgress = OverallProgress{
		Status:  composite.Category,
		Score:   composite.Score,
		Summary: summary,
	}

	result.Recommendations = GenerateRecommendations(current.TreatmentStage, result, composite)
	return result
}

func progressSummary(c CompositeScore, name string, stage TreatmentStage) string {
	if name == "" {
		name = "The patient"
	}
	stageText := string(stage)
	if stageText == "" {
		stageText = string(StageInitial)
	}
	score := formatPercent(c.Score)

	switch c.Category {
	case ImprovementSignificant:
		return fmt.Sprintf("%s has shown significant improvement (%s composite) during the %s treatment stage. The current treatment plan is highly effective.", name, score, stageText)
	case ImprovementModerate:
		return fmt.Sprintf("%s has shown moderate improvement (%s composite) during the %s treatment stage. The treatment plan is working and should be continued.", name, score, stageText)
	case ImprovementMinimal:
		return fmt.Sprintf("%s has shown minimal improvement (%s composite) during the %s treatment stage. Consider adjusting the treatment plan.", name, score, stageText)
	case ImprovementNoChange:
		return fmt.Sprintf("%s has shown no significant change (%s composite) during the %s treatment stage. The treatment plan should be reviewed.", name, score, stageText)
	default:
		return fmt.Sprintf("%s has shown deterioration (%s composite) during the %s treatment stage. Immediate review of the treatment plan is recommended.", name, score, stageText)
	}
}

func insufficientDataSummary(name string) string {
	if name == "" {
		name = "the patient"
	}
	return fmt.Sprintf("Insufficient data to assess progress for %s. A previous assessment with matching measurements is required for comparison.", name)
}
