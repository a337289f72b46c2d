package optm

import (
	"time"

	"github.com/google/uuid"
)

// TreatmentStage is the phase of a patient's care plan.
type TreatmentStage string

const (
	StageInitial      TreatmentStage = "initial"
	StageEarly        TreatmentStage = "early"
	StageIntermediate TreatmentStage = "intermediate"
	StageAdvanced     TreatmentStage = "advanced"
	StageMaintenance  TreatmentStage = "maintenance"
)

var validTreatmentStages = map[TreatmentStage]bool{
	StageInitial: true, StageEarly: true, StageIntermediate: true,
	StageAdvanced: true, StageMaintenance: true,
}

// ImprovementCategory classifies an improvement percentage. Categories are
// ordered from best (significant) to worst (deterioration).
type ImprovementCategory string

const (
	ImprovementSignificant   ImprovementCategory = "significant"
	ImprovementModerate      ImprovementCategory = "moderate"
	ImprovementMinimal       ImprovementCategory = "minimal"
	ImprovementNoChange      ImprovementCategory = "no-change"
	ImprovementDeterioration ImprovementCategory = "deterioration"
)

// BiomarkerStatus classifies a biomarker value against its reference range.
type BiomarkerStatus string

const (
	StatusNormal   BiomarkerStatus = "normal"
	StatusElevated BiomarkerStatus = "elevated"
	StatusLow      BiomarkerStatus = "low"
)

// Imaging modalities and acquisition stages.
const (
	ImagingXRay       = "x-ray"
	ImagingMRI        = "mri"
	ImagingCT         = "ct"
	ImagingUltrasound = "ultrasound"

	ImagingPreTreatment  = "pre-treatment"
	ImagingPostTreatment = "post-treatment"
	ImagingFollowUp      = "follow-up"
)

var validImagingTypes = map[string]bool{
	ImagingXRay: true, ImagingMRI: true, ImagingCT: true, ImagingUltrasound: true,
}

var validImagingStages = map[string]bool{
	ImagingPreTreatment: true, ImagingPostTreatment: true, ImagingFollowUp: true,
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}

// PatientSnapshot is one time-stamped musculoskeletal assessment of a patient.
// Snapshots are treated as immutable once stored; the analysis engine only
// reads them.
type PatientSnapshot struct {
	ID                     uuid.UUID              `json:"id"`
	PatientID              string                 `json:"patient_id"`
	Name                   string                 `json:"name"`
	Age                    int                    `json:"age"`
	Gender                 string                 `json:"gender"`
	TreatmentStage         TreatmentStage         `json:"treatment_stage"`
	Biomarkers             map[string]*float64    `json:"biomarkers"`
	AnatomicalMeasurements AnatomicalMeasurements `json:"anatomical_measurements"`
	MobilityMeasurements   MobilityMeasurements   `json:"mobility_measurements"`
	Imaging                []ImagingStudy         `json:"imaging"`
	LastUpdated            time.Time              `json:"last_updated"`
	CreatedAt              time.Time              `json:"created_at"`
}

// AnatomicalMeasurements holds the scalar CTM value and the CCM/CAP/CBP
// measurement series. Series entries are paired across visits by position.
type AnatomicalMeasurements struct {
	CTM *float64                `json:"ctm,omitempty"`
	CCM []AnatomicalMeasurement `json:"ccm,omitempty"`
	CAP []AnatomicalMeasurement `json:"cap,omitempty"`
	CBP []AnatomicalMeasurement `json:"cbp,omitempty"`
}

type AnatomicalMeasurement struct {
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Location string  `json:"location"`
	Side     *string `json:"side,omitempty"`
}

// MobilityMeasurements holds joint range-of-motion readings in degrees.
type MobilityMeasurements struct {
	KneeFlexion      *JointMotion `json:"knee_flexion,omitempty"`
	KneeExtension    *JointMotion `json:"knee_extension,omitempty"`
	PelvicTilt       *JointMotion `json:"pelvic_tilt,omitempty"`
	CervicalRotation *JointMotion `json:"cervical_rotation,omitempty"`
	ShoulderFlexion  *JointMotion `json:"shoulder_flexion,omitempty"`
	HipFlexion       *JointMotion `json:"hip_flexion,omitempty"`
}

// JointMotion is a single range-of-motion reading. Side is used for bilateral
// joints, Direction for tilts and rotations.
type JointMotion struct {
	Value     float64 `json:"value"`
	Side      string  `json:"side,omitempty"`
	Direction string  `json:"direction,omitempty"`
}

type ImagingStudy struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	BodyPart string    `json:"body_part"`
	Date     time.Time `json:"date"`
	Stage    string    `json:"stage"`
	ImageURL string    `json:"image_url"`
	Notes    string    `json:"notes,omitempty"`
}

// AnalysisRecord is the comparison of one measured item between two snapshots.
type AnalysisRecord struct {
	Identifier            string              `json:"identifier"`
	CurrentValue          *float64            `json:"current_value,omitempty"`
	PreviousValue         *float64            `json:"previous_value,omitempty"`
	Status                *BiomarkerStatus    `json:"status,omitempty"`
	Improvement           ImprovementCategory `json:"improvement"`
	ImprovementPercentage float64             `json:"improvement_percentage"`
	Notes                 string              `json:"notes"`
	Target                *float64            `json:"target,omitempty"`
}

// Recommendation categories and priorities.
const (
	RecMedication = "medication"
	RecLifestyle  = "lifestyle"
	RecExercise   = "exercise"
	RecFollowUp   = "follow-up"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type Recommendation struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type OverallProgress struct {
	Status  ImprovementCategory `json:"status"`
	Score   float64             `json:"score"`
	Summary string              `json:"summary"`
}

// AnalysisResult is the full comparative report for one patient.
type AnalysisResult struct {
	PatientID          string           `json:"patient_id"`
	OverallProgress    OverallProgress  `json:"overall_progress"`
	BiomarkerAnalysis  []AnalysisRecord `json:"biomarker_analysis"`
	AnatomicalAnalysis []AnalysisRecord `json:"anatomical_analysis"`
	MobilityAnalysis   []AnalysisRecord `json:"mobility_analysis"`
	ImagingAnalysis    []AnalysisRecord `json:"imaging_analysis"`
	Recommendations    []Recommendation `json:"recommendations"`
	CreatedAt          time.Time        `json:"created_at"`
}

// AnalysisReport is a persisted analysis run.
type AnalysisReport struct {
	ID                 uuid.UUID           `db:"id" json:"id"`
	PatientID          string              `db:"patient_id" json:"patient_id"`
	CurrentSnapshotID  uuid.UUID           `db:"current_snapshot_id" json:"current_snapshot_id"`
	PreviousSnapshotID *uuid.UUID          `db:"previous_snapshot_id" json:"previous_snapshot_id,omitempty"`
	Score              float64             `db:"score" json:"score"`
	Category           ImprovementCategory `db:"category" json:"category"`
	Result             *AnalysisResult     `db:"result" json:"result"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
}

func floatPtr(f float64) *float64 { return &f }
