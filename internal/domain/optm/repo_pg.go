package optm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optm/optm/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Snapshots --

type snapshotRepoPG struct{ pool *pgxpool.Pool }

func NewSnapshotRepoPG(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepoPG{pool: pool}
}

func (r *snapshotRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const snapshotCols = `id, patient_id, name, age, gender, treatment_stage,
	biomarkers, anatomical_measurements, mobility_measurements, imaging,
	last_updated, created_at`

func (r *snapshotRepoPG) scanRow(row pgx.Row) (*PatientSnapshot, error) {
	var s PatientSnapshot
	var biomarkers, anatomical, mobility, imaging []byte
	err := row.Scan(&s.ID, &s.PatientID, &s.Name, &s.Age, &s.Gender, &s.TreatmentStage,
		&biomarkers, &anatomical, &mobility, &imaging,
		&s.LastUpdated, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(biomarkers, &s.Biomarkers); err != nil {
		return nil, fmt.Errorf("decode biomarkers: %w", err)
	}
	if err := json.Unmarshal(anatomical, &s.AnatomicalMeasurements); err != nil {
		return nil, fmt.Errorf("decode anatomical measurements: %w", err)
	}
	if err := json.Unmarshal(mobility, &s.MobilityMeasurements); err != nil {
		return nil, fmt.Errorf("decode mobility measurements: %w", err)
	}
	if err := json.Unmarshal(imaging, &s.Imaging); err != nil {
		return nil, fmt.Errorf("decode imaging: %w", err)
	}
	return &s, nil
}

func (r *snapshotRepoPG) Create(ctx context.Context, s *PatientSnapshot) error {
	s.ID = uuid.New()
	biomarkers, err := json.Marshal(s.Biomarkers)
	if err != nil {
		return err
	}
	anatomical, err := json.Marshal(s.AnatomicalMeasurements)
	if err != nil {
		return err
	}
	mobility, err := json.Marshal(s.MobilityMeasurements)
	if err != nil {
		return err
	}
	if s.Imaging == nil {
		s.Imaging = []ImagingStudy{}
	}
	imaging, err := json.Marshal(s.Imaging)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_snapshot (id, patient_id, name, age, gender, treatment_stage,
			biomarkers, anatomical_measurements, mobility_measurements, imaging, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		s.ID, s.PatientID, s.Name, s.Age, s.Gender, s.TreatmentStage,
		biomarkers, anatomical, mobility, imaging, s.LastUpdated).Scan(&s.CreatedAt)
}

func (r *snapshotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientSnapshot, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+snapshotCols+` FROM patient_snapshot WHERE id = $1`, id))
}

func (r *snapshotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_snapshot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

func (r *snapshotRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*PatientSnapshot, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_snapshot WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+snapshotCols+` FROM patient_snapshot WHERE patient_id = $1 ORDER BY last_updated DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientSnapshot
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *snapshotRepoPG) LatestPair(ctx context.Context, patientID string) (*PatientSnapshot, *PatientSnapshot, error) {
	items, _, err := r.ListByPatient(ctx, patientID, 2, 0)
	if err != nil {
		return nil, nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil, ErrSnapshotNotFound
	case 1:
		return items[0], nil, nil
	default:
		return items[0], items[1], nil
	}
}

// -- Reports --

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const reportCols = `id, patient_id, current_snapshot_id, previous_snapshot_id,
	score, category, result, created_at`

func (r *reportRepoPG) scanRow(row pgx.Row) (*AnalysisReport, error) {
	var rep AnalysisReport
	var result []byte
	if err := row.Scan(&rep.ID, &rep.PatientID, &rep.CurrentSnapshotID, &rep.PreviousSnapshotID,
		&rep.Score, &rep.Category, &result, &rep.CreatedAt); err != nil {
		return nil, err
	}
	rep.Result = &AnalysisResult{}
	if err := json.Unmarshal(result, rep.Result); err != nil {
		return nil, fmt.Errorf("decode analysis result: %w", err)
	}
	return &rep, nil
}

func (r *reportRepoPG) Create(ctx context.Context, rep *AnalysisReport) error {
	rep.ID = uuid.New()
	result, err := json.Marshal(rep.Result)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO analysis_report (id, patient_id, current_snapshot_id, previous_snapshot_id,
			score, category, result)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		rep.ID, rep.PatientID, rep.CurrentSnapshotID, rep.PreviousSnapshotID,
		rep.Score, rep.Category, result).Scan(&rep.CreatedAt)
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AnalysisReport, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM analysis_report WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reportCols+` FROM analysis_report WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AnalysisReport
	for rows.Next() {
		rep, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}
