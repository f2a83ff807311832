package ports

import (
	"context"
	"io"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

// ReportIngestor is the inbound contract for synchronous report ingestion.
// Processing failures surface through the returned record with
// Status=UploadFailed and a human-readable message; the error return is
// reserved for record-keeping and infrastructure faults.
type ReportIngestor interface {
	Ingest(ctx context.Context, patientID, filename string, body io.Reader) (*domain.ReportUpload, error)
}

// GateReader exposes the per-patient gate state derived from upload records.
type GateReader interface {
	Status(ctx context.Context, patientID string) (*domain.ReportStatus, error)
}

// ChatService answers patient questions with retrieval-grounded, risk-triaged
// replies and serves the persisted transcript.
type ChatService interface {
	Query(ctx context.Context, patientID, message string) (*domain.ChatAnswer, error)
	History(ctx context.Context, patientID string, limit int) ([]domain.ChatExchange, error)
}

// MonitoringService drives structured monitoring sessions.
type MonitoringService interface {
	Start(ctx context.Context, patientID string, maxQuestions int) (*domain.MonitoringSession, error)
	NextQuestion(ctx context.Context, sessionID string) (*domain.NextQuestion, error)
	SubmitAnswer(ctx context.Context, sessionID, question, answer string, answerType domain.AnswerType) (*domain.MonitoringSession, error)
	Assess(ctx context.Context, sessionID string) (*domain.SessionAssessment, error)
}
