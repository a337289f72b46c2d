package optm

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSnapshotNotFound      = errors.New("snapshot not found")
	ErrInsufficientSnapshots = errors.New("a current snapshot is required for analysis")
	ErrInvalidSnapshot       = errors.New("invalid snapshot")
)

type SnapshotRepository interface {
	Create(ctx context.Context, s *PatientSnapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientSnapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*PatientSnapshot, int, error)
	// LatestPair returns the two most recent snapshots of a patient ordered by
	// last_updated. previous is nil when only one snapshot exists.
	LatestPair(ctx context.Context, patientID string) (current, previous *PatientSnapshot, err error)
}

type ReportRepository interface {
	Create(ctx context.Context, r *AnalysisReport) error
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AnalysisReport, int, error)
}
