package optm

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func fullSnapshots() (*PatientSnapshot, *PatientSnapshot) {
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }
	prev := &PatientSnapshot{
		PatientID:      "p-1",
		Name:           "Jane Doe",
		TreatmentStage: StageEarly,
		Biomarkers:     map[string]*float64{"crp": floatPtr(6), "vitaminD": floatPtr(20)},
		AnatomicalMeasurements: AnatomicalMeasurements{
			CTM: floatPtr(4),
			CCM: []AnatomicalMeasurement{{Value: 4, Unit: "mm", Location: "medial"}},
		},
		MobilityMeasurements: MobilityMeasurements{
			KneeFlexion: &JointMotion{Value: 100, Side: "left"},
		},
		Imaging: []ImagingStudy{{ID: "a", Type: ImagingMRI, BodyPart: "knee", Stage: ImagingPreTreatment, Date: day(1)}},
	}
	cur := &PatientSnapshot{
		PatientID:      "p-1",
		Name:           "Jane Doe",
		TreatmentStage: StageIntermediate,
		Biomarkers:     map[string]*float64{"crp": floatPtr(3), "vitaminD": floatPtr(35)},
		AnatomicalMeasurements: AnatomicalMeasurements{
			CTM: floatPtr(2),
			CCM: []AnatomicalMeasurement{{Value: 3, Unit: "mm", Location: "medial"}},
		},
		MobilityMeasurements: MobilityMeasurements{
			KneeFlexion: &JointMotion{Value: 125, Side: "left"},
		},
		Imaging: []ImagingStudy{{ID: "b", Type: ImagingMRI, BodyPart: "knee", Stage: ImagingPostTreatment, Date: day(28)}},
	}
	return cur, prev
}

func TestAnalyze_FullReport(t *testing.T) {
	cur, prev := fullSnapshots()
	result := Analyze(cur, prev)

	if result.PatientID != "p-1" {
		t.Errorf("expected patient p-1, got %s", result.PatientID)
	}
	if len(result.BiomarkerAnalysis) != 2 {
		t.Errorf("expected 2 biomarker records, got %d", len(result.BiomarkerAnalysis))
	}
	if len(result.AnatomicalAnalysis) != 2 {
		t.Errorf("expected 2 anatomical records, got %d", len(result.AnatomicalAnalysis))
	}
	if len(result.MobilityAnalysis) != 1 {
		t.Errorf("expected 1 mobility record, got %d", len(result.MobilityAnalysis))
	}
	if len(result.ImagingAnalysis) != 1 {
		t.Errorf("expected 1 imaging record, got %d", len(result.ImagingAnalysis))
	}

	// biomarker mean (50+75)/2 = 62.5, anatomical (50+25)/2 = 37.5, mobility 25, imaging 50
	want := (40*62.5 + 30*37.5 + 20*25 + 10*50) / 100
	if !approxEqual(result.OverallProgress.Score, want) {
		t.Errorf("expected composite %v, got %v", want, result.OverallProgress.Score)
	}
	if result.OverallProgress.Status != ImprovementMinimal {
		t.Errorf("expected minimal, got %s", result.OverallProgress.Status)
	}
	if !strings.Contains(result.OverallProgress.Summary, "Jane Doe") {
		t.Errorf("summary should name the patient: %q", result.OverallProgress.Summary)
	}
	if !strings.Contains(result.OverallProgress.Summary, "intermediate") {
		t.Errorf("summary should name the stage: %q", result.OverallProgress.Summary)
	}
	if len(result.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
}

func TestAnalyze_NoPrevious(t *testing.T) {
	cur := &PatientSnapshot{
		PatientID:            "p-2",
		TreatmentStage:       StageInitial,
		Biomarkers:           map[string]*float64{"crp": floatPtr(3)},
		MobilityMeasurements: MobilityMeasurements{KneeFlexion: &JointMotion{Value: 140}},
	}
	result := Analyze(cur, nil)

	if len(result.BiomarkerAnalysis)+len(result.AnatomicalAnalysis)+len(result.MobilityAnalysis)+len(result.ImagingAnalysis) != 0 {
		t.Errorf("expected empty analyses, got %+v", result)
	}
	if result.MobilityAnalysis == nil {
		t.Error("expected non-nil empty mobility analysis")
	}
	if result.OverallProgress.Score != 0 || result.OverallProgress.Status != ImprovementNoChange {
		t.Errorf("expected {0, no-change}, got %+v", result.OverallProgress)
	}
	if !strings.Contains(result.OverallProgress.Summary, "Insufficient data") {
		t.Errorf("expected insufficient-data summary, got %q", result.OverallProgress.Summary)
	}
	if countCategory(result.Recommendations, RecFollowUp, PriorityHigh) != 1 {
		t.Errorf("expected 2-week follow-up, got %+v", result.Recommendations)
	}
}

func TestAnalyze_NilCurrent(t *testing.T) {
	result := Analyze(nil, nil)
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.OverallProgress.Status != ImprovementNoChange {
		t.Errorf("expected no-change, got %s", result.OverallProgress.Status)
	}
	if len(result.Recommendations) != 2 {
		t.Errorf("expected follow-up and stage recommendations, got %+v", result.Recommendations)
	}
}

func TestAnalyzeAt_Deterministic(t *testing.T) {
	cur, prev := fullSnapshots()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := AnalyzeAt(cur, prev, at)
	b := AnalyzeAt(cur, prev, at)
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical results for identical inputs")
	}
	if !a.CreatedAt.Equal(at) {
		t.Errorf("expected created_at %v, got %v", at, a.CreatedAt)
	}
}

func TestAnalyze_DoesNotMutateInputs(t *testing.T) {
	cur, prev := fullSnapshots()
	curCopy, prevCopy := fullSnapshots()

	Analyze(cur, prev)
	if !reflect.DeepEqual(cur, curCopy) || !reflect.DeepEqual(prev, prevCopy) {
		t.Error("analysis modified its inputs")
	}
}

func TestAnalyze_ElevatedCRPRecommendations(t *testing.T) {
	cur := snapshotWithBiomarkers(map[string]float64{"crp": 12})
	prev := snapshotWithBiomarkers(map[string]float64{"crp": 15})

	result := Analyze(cur, prev)
	if countCategory(result.Recommendations, RecMedication, PriorityHigh) != 1 {
		t.Errorf("expected medication recommendation, got %+v", result.Recommendations)
	}
	if countCategory(result.Recommendations, RecLifestyle, PriorityMedium) != 1 {
		t.Errorf("expected lifestyle recommendation, got %+v", result.Recommendations)
	}
}
