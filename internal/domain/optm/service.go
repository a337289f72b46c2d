package optm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/optm/optm/internal/platform/cache"
	"github.com/optm/optm/internal/platform/db"
	"github.com/optm/optm/internal/platform/events"
)

// ResultCache stores computed analyses keyed by patient and snapshot pair.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// AnalysisRecorder receives one observation per engine run.
type AnalysisRecorder interface {
	ObserveAnalysis(category string, score float64, d time.Duration)
}

type Service struct {
	snapshots SnapshotRepository
	reports   ReportRepository
	cache     ResultCache
	cacheTTL  time.Duration
	publisher events.Publisher
	recorder  AnalysisRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(snapshots SnapshotRepository, reports ReportRepository) *Service {
	return &Service{
		snapshots: snapshots,
		reports:   reports,
		publisher: events.Nop{},
		logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetCache attaches an optional analysis cache.
func (s *Service) SetCache(c ResultCache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetPublisher attaches the publisher for analysis.completed events.
func (s *Service) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

func (s *Service) SetRecorder(r AnalysisRecorder) { s.recorder = r }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// -- Snapshots --

func (s *Service) CreateSnapshot(ctx context.Context, snap *PatientSnapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.LastUpdated.IsZero() {
		snap.LastUpdated = s.now()
	}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	s.invalidate(ctx, snap.PatientID)
	return nil
}

func validateSnapshot(snap *PatientSnapshot) error {
	if snap.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if snap.TreatmentStage == "" {
		snap.TreatmentStage = StageInitial
	}
	if !validTreatmentStages[snap.TreatmentStage] {
		return fmt.Errorf("invalid treatment_stage: %s", snap.TreatmentStage)
	}
	if snap.Gender == "" {
		snap.Gender = "unknown"
	}
	if !validGenders[snap.Gender] {
		return fmt.Errorf("invalid gender: %s", snap.Gender)
	}
	if snap.Age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	for k, v := range snap.Biomarkers {
		if !IsKnownBiomarker(k) {
			return fmt.Errorf("unknown biomarker: %s", k)
		}
		if v != nil && *v < 0 {
			return fmt.Errorf("biomarker %s must not be negative", k)
		}
	}
	if ctm := snap.AnatomicalMeasurements.CTM; ctm != nil && *ctm < 0 {
		return fmt.Errorf("ctm must not be negative")
	}
	for i, img := range snap.Imaging {
		if !validImagingTypes[img.Type] {
			return fmt.Errorf("imaging[%d]: invalid type: %s", i, img.Type)
		}
		if !validImagingStages[img.Stage] {
			return fmt.Errorf("imaging[%d]: invalid stage: %s", i, img.Stage)
		}
		if img.BodyPart == "" {
			return fmt.Errorf("imaging[%d]: body_part is required", i)
		}
	}
	return nil
}

func (s *Service) GetSnapshot(ctx context.Context, id uuid.UUID) (*PatientSnapshot, error) {
	return s.snapshots.GetByID(ctx, id)
}

func (s *Service) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	snap, err := s.snapshots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.snapshots.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, snap.PatientID)
	return nil
}

func (s *Service) ListSnapshots(ctx context.Context, patientID string, limit, offset int) ([]*PatientSnapshot, int, error) {
	return s.snapshots.ListByPatient(ctx, patientID, limit, offset)
}

// -- Analysis --

// Cache keys are analysis:<clinic>:<patient>:<current>:<previous>. The patient
// id is query-escaped so a ':' or glob character in it cannot reach into
// another patient's keys. Calls without a clinic use "-", which no clinic id
// can be.
func analysisCacheKey(ctx context.Context, patientID string, current, previous *PatientSnapshot) string {
	prev := "none"
	if previous != nil {
		prev = previous.ID.String()
	}
	return fmt.Sprintf("%s%s:%s", analysisCachePrefix(ctx, patientID), current.ID, prev)
}

func analysisCachePrefix(ctx context.Context, patientID string) string {
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = "-"
	}
	return fmt.Sprintf("analysis:%s:%s:", tenant, url.QueryEscape(patientID))
}

// AnalyzePatient compares the two most recent snapshots of a patient. A
// cached result for the same snapshot pair is returned without re-running
// the engine; a fresh result is persisted as a report and announced.
func (s *Service) AnalyzePatient(ctx context.Context, patientID string) (*AnalysisResult, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	var result *AnalysisResult
	var report *AnalysisReport
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		current, previous, err := s.snapshots.LatestPair(ctx, patientID)
		if err != nil {
			return err
		}

		key := analysisCacheKey(ctx, patientID, current, previous)
		if s.cache != nil {
			var cached AnalysisResult
			err := s.cache.Get(ctx, key, &cached)
			if err == nil {
				result = &cached
				return nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("analysis cache read failed")
			}
		}

		result = s.run(current, previous)
		report = &AnalysisReport{
			PatientID:         patientID,
			CurrentSnapshotID: current.ID,
			Score:             result.OverallProgress.Score,
			Category:          result.OverallProgress.Status,
			Result:            result,
		}
		if previous != nil {
			id := previous.ID
			report.PreviousSnapshotID = &id
		}
		if err := s.reports.Create(ctx, report); err != nil {
			return fmt.Errorf("store analysis report: %w", err)
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("analysis cache write failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report != nil {
		s.announce(ctx, report)
	}
	return result, nil
}

// AnalyzeSnapshots runs the engine on caller-supplied snapshots without
// touching storage.
func (s *Service) AnalyzeSnapshots(_ context.Context, current, previous *PatientSnapshot) (*AnalysisResult, error) {
	if current == nil {
		return nil, ErrInsufficientSnapshots
	}
	return s.run(current, previous), nil
}

// VisualizePatient returns chart series for the two most recent snapshots.
func (s *Service) VisualizePatient(ctx context.Context, patientID string) (*VisualizationData, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	current, previous, err := s.snapshots.LatestPair(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return PrepareVisualizationData(current, previous, s.run(current, previous)), nil
}

func (s *Service) ListReports(ctx context.Context, patientID string, limit, offset int) ([]*AnalysisReport, int, error) {
	return s.reports.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) run(current, previous *PatientSnapshot) *AnalysisResult {
	start := time.Now()
	result := AnalyzeAt(current, previous, s.now())
	if s.recorder != nil {
		s.recorder.ObserveAnalysis(string(result.OverallProgress.Status), result.OverallProgress.Score, time.Since(start))
	}
	return result
}

func (s *Service) invalidate(ctx context.Context, patientID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeleteByPrefix(ctx, analysisCachePrefix(ctx, patientID)); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("analysis cache invalidation failed")
	}
}

// AnalysisCompleted is the payload of the analysis.completed event.
type AnalysisCompleted struct {
	ReportID           uuid.UUID           `json:"report_id"`
	PatientID          string              `json:"patient_id"`
	CurrentSnapshotID  uuid.UUID           `json:"current_snapshot_id"`
	PreviousSnapshotID *uuid.UUID          `json:"previous_snapshot_id,omitempty"`
	Score              float64             `json:"score"`
	Category           ImprovementCategory `json:"category"`
}

func (s *Service) announce(ctx context.Context, r *AnalysisReport) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeAnalysisCompleted,
		Key:        r.PatientID,
		TenantID:   db.TenantFromContext(ctx),
		OccurredAt: s.now(),
		Data: AnalysisCompleted{
			ReportID:           r.ID,
			PatientID:          r.PatientID,
			CurrentSnapshotID:  r.CurrentSnapshotID,
			PreviousSnapshotID: r.PreviousSnapshotID,
			Score:              r.Score,
			Category:           r.Category,
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", r.PatientID).Msg("publish analysis event failed")
	}
}
