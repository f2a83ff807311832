package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type UploadRepository struct {
	db *sql.DB
}

func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) Create(ctx context.Context, rec *domain.ReportUpload) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO report_uploads (id, patient_id, filename, status, chunks_created, message, archive_path, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, rec.ID, rec.PatientID, rec.Filename, string(rec.Status), rec.ChunksCreated, rec.Message, rec.ArchivePath, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert upload record: %w", err)
	}
	return nil
}

func (r *UploadRepository) Finalize(ctx context.Context, id string, status domain.UploadStatus, chunksCreated int, message string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE report_uploads
SET status = $2, chunks_created = $3, message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), chunksCreated, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finalize upload record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize upload rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("upload record not found: id=%s", id)
	}
	return nil
}

func (r *UploadRepository) HasSuccessfulUpload(ctx context.Context, patientID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM report_uploads WHERE patient_id = $1 AND status = $2
)
`, patientID, string(domain.UploadSuccess))

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check successful upload: %w", err)
	}
	return exists, nil
}

func (r *UploadRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.ReportUpload, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, patient_id, filename, status, chunks_created, message, archive_path, created_at, updated_at
FROM report_uploads
WHERE patient_id = $1
ORDER BY created_at DESC
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReportUpload, 0)
	for rows.Next() {
		var rec domain.ReportUpload
		var status string
		if err := rows.Scan(
			&rec.ID,
			&rec.PatientID,
			&rec.Filename,
			&status,
			&rec.ChunksCreated,
			&rec.Message,
			&rec.ArchivePath,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upload record: %w", err)
		}
		rec.Status = domain.UploadStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}
