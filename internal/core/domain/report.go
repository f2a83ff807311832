package domain

import "time"

type UploadStatus string

const (
	UploadPending UploadStatus = "pending"
	UploadSuccess UploadStatus = "success"
	UploadFailed  UploadStatus = "failed"
)

// ReportUpload records one ingestion attempt for a patient report. The
// chat/monitoring gate opens once a patient has at least one record with
// UploadSuccess; flipping a record to success is always the final step of
// a fully indexed ingestion.
type ReportUpload struct {
	ID            string       `json:"id"`
	PatientID     string       `json:"patient_id"`
	Filename      string       `json:"filename"`
	Status        UploadStatus `json:"status"`
	ChunksCreated int          `json:"chunks_created"`
	Message       string       `json:"message,omitempty"`
	ArchivePath   string       `json:"archive_path,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ReportStatus is the gate state for one patient, re-evaluated per request.
type ReportStatus struct {
	HasMedicalReport         bool `json:"has_medical_report"`
	CanProceedWithMonitoring bool `json:"can_proceed_with_monitoring"`
}
