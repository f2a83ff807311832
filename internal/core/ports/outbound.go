package ports

import (
	"context"
	"io"
	"time"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

// ReportExtractor turns an uploaded file into plain text. Unsupported
// formats are reported as domain.ErrUnsupportedFile.
type ReportExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// Chunker normalizes text and splits it into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text. Embed returns exactly
// one vector per input or an error; partial results are never returned.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PartitionStore persists and searches chunk vectors in isolated partitions.
// Appending the same (source file, chunk index) twice overwrites rather than
// duplicates. Searching a partition that does not exist fails with
// domain.ErrPartitionNotFound.
type PartitionStore interface {
	EnsurePartition(ctx context.Context, partition string, vectorSize int) error
	AppendChunks(ctx context.Context, partition string, chunks []domain.DocumentChunk, vectors [][]float32) error
	Search(ctx context.Context, partition string, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
}

// UploadRecordStore persists report upload attempts. It is the source of
// truth for the chat/monitoring gate.
type UploadRecordStore interface {
	Create(ctx context.Context, rec *domain.ReportUpload) error
	Finalize(ctx context.Context, id string, status domain.UploadStatus, chunksCreated int, message string) error
	HasSuccessfulUpload(ctx context.Context, patientID string) (bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.ReportUpload, error)
}

// SessionStore persists monitoring sessions and their transcripts.
// Complete must succeed at most once per session; a second call fails with
// domain.ErrSessionComplete.
type SessionStore interface {
	Create(ctx context.Context, session *domain.MonitoringSession) error
	Get(ctx context.Context, id string) (*domain.MonitoringSession, error)
	AppendQuestion(ctx context.Context, sessionID string, position int, question domain.AskedQuestion) error
	RecordAnswer(ctx context.Context, sessionID string, position int, answer string, answeredAt time.Time) error
	Complete(ctx context.Context, sessionID string, assessment domain.RiskAssessment, completedAt time.Time) error
}

// ChatHistoryStore persists chat exchanges per patient.
type ChatHistoryStore interface {
	Append(ctx context.Context, exchange *domain.ChatExchange) error
	ListRecent(ctx context.Context, patientID string, limit int) ([]domain.ChatExchange, error)
}

// ReportArchive keeps the raw bytes of uploaded reports per patient.
type ReportArchive interface {
	Save(ctx context.Context, patientID, filename string, data io.Reader) (string, error)
}

// AlertPublisher pushes risk alerts to the care-team broker.
type AlertPublisher interface {
	PublishRiskAlert(ctx context.Context, alert domain.RiskAlert) error
}

// AnswerGenerator produces the user-facing chat reply grounded in retrieved
// context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, history []domain.ChatExchange, chunks []domain.RetrievedChunk) (string, error)
}

// QuestionGenerator produces the next monitoring question.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, prompt domain.QuestionPrompt) (domain.GeneratedQuestion, error)
}

// RiskModel classifies risk from a monitoring transcript or a chat message.
// Implementations validate the model payload strictly; callers fall back to
// the deterministic classifier on error.
type RiskModel interface {
	AssessMonitoring(ctx context.Context, transcript []domain.AskedQuestion, guidance []domain.RetrievedChunk) (domain.RiskVerdict, error)
	AssessChat(ctx context.Context, message string, history []domain.ChatExchange, guidance []domain.RetrievedChunk) (domain.RiskVerdict, error)
}

// ClinicalPolicy serves the reviewed policy table: fixed advisory wording per
// risk tier and the deterministic fallback question catalog.
type ClinicalPolicy interface {
	MonitoringAction(level domain.RiskLevel) string
	ChatAction(level domain.RiskLevel) string
	NextFallback(asked func(string) bool) (domain.GeneratedQuestion, bool)
}
