package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
)

type IngestLimits struct {
	MaxUploadBytes int64
	MinTextChars   int
}

var (
	errTextTooShort = errors.New("extracted text below minimum length")
	errNoChunks     = errors.New("chunking produced zero chunks")
)

// ReportIngestUseCase runs the synchronous ingestion pipeline for one
// uploaded report: archive, record, extract, chunk, embed, index. The upload
// record flips to success only after every chunk is in the patient partition,
// so the chat/monitoring gate can never open on a half-indexed report.
// Processing failures finalize the record to failed and surface through the
// returned record, not the error value; the error return is reserved for
// infrastructure faults.
type ReportIngestUseCase struct {
	uploads    ports.UploadRecordStore
	archive    ports.ReportArchive
	extractor  ports.ReportExtractor
	chunker    ports.Chunker
	embedder   ports.Embedder
	store      ports.PartitionStore
	limits     IngestLimits
	perPatient *keyedMutex
}

func NewReportIngestUseCase(
	uploads ports.UploadRecordStore,
	archive ports.ReportArchive,
	extractor ports.ReportExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.PartitionStore,
	limits IngestLimits,
) *ReportIngestUseCase {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = 10 << 20
	}
	if limits.MinTextChars <= 0 {
		limits.MinTextChars = 50
	}
	return &ReportIngestUseCase{
		uploads:    uploads,
		archive:    archive,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		limits:     limits,
		perPatient: newKeyedMutex(),
	}
}

func (uc *ReportIngestUseCase) Ingest(ctx context.Context, patientID, filename string, body io.Reader) (*domain.ReportUpload, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest report", errors.New("patient id is required"))
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest report", errors.New("filename is required"))
	}

	data, err := uc.readUpload(body)
	if err != nil {
		return nil, err
	}

	unlock := uc.perPatient.lock(patientID)
	defer unlock()

	archivePath, err := uc.archive.Save(ctx, patientID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("archive report: %w", err)
	}

	now := time.Now().UTC()
	rec := &domain.ReportUpload{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		Filename:    filename,
		Status:      domain.UploadPending,
		ArchivePath: archivePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.uploads.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create upload record: %w", err)
	}

	chunksCreated, err := uc.pipeline(ctx, rec, data)
	if err != nil {
		message := failureMessage(filename, err)
		if finalizeErr := uc.uploads.Finalize(ctx, rec.ID, domain.UploadFailed, 0, message); finalizeErr != nil {
			return nil, fmt.Errorf("%w; finalize failed record: %v", err, finalizeErr)
		}
		if domain.IsKind(err, domain.ErrTemporary) {
			return nil, err
		}
		rec.Status = domain.UploadFailed
		rec.Message = message
		rec.UpdatedAt = time.Now().UTC()
		return rec, nil
	}

	message := fmt.Sprintf("Successfully processed report: %d chunks indexed", chunksCreated)
	if err := uc.uploads.Finalize(ctx, rec.ID, domain.UploadSuccess, chunksCreated, message); err != nil {
		return nil, fmt.Errorf("finalize upload record: %w", err)
	}
	rec.Status = domain.UploadSuccess
	rec.ChunksCreated = chunksCreated
	rec.Message = message
	rec.UpdatedAt = time.Now().UTC()
	return rec, nil
}

func (uc *ReportIngestUseCase) readUpload(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, uc.limits.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > uc.limits.MaxUploadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload",
			fmt.Errorf("file exceeds the %d byte upload limit", uc.limits.MaxUploadBytes))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("uploaded file is empty"))
	}
	return data, nil
}

func (uc *ReportIngestUseCase) pipeline(ctx context.Context, rec *domain.ReportUpload, data []byte) (int, error) {
	text, err := uc.extract(ctx, rec.Filename, data)
	if err != nil {
		return 0, err
	}

	chunks, err := uc.chunk(text)
	if err != nil {
		return 0, err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := uc.index(ctx, rec, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (uc *ReportIngestUseCase) extract(ctx context.Context, filename string, data []byte) (string, error) {
	text, err := uc.extractor.Extract(ctx, filename, data)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	compact := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(compact) < uc.limits.MinTextChars {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate extracted text", errTextTooShort)
	}
	return text, nil
}

func (uc *ReportIngestUseCase) chunk(text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk report", errNoChunks)
	}
	return chunks, nil
}

func (uc *ReportIngestUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *ReportIngestUseCase) index(ctx context.Context, rec *domain.ReportUpload, chunks []string, vectors [][]float32) error {
	partition := domain.PatientPartition(rec.PatientID)
	if err := uc.store.EnsurePartition(ctx, partition, len(vectors[0])); err != nil {
		return fmt.Errorf("ensure patient partition: %w", err)
	}

	now := time.Now().UTC()
	docChunks := make([]domain.DocumentChunk, len(chunks))
	for i, text := range chunks {
		docChunks[i] = domain.DocumentChunk{
			Text:           text,
			SourceFile:     rec.Filename,
			ChunkIndex:     i,
			OwnerPartition: partition,
			IndexedAt:      now,
		}
	}
	if err := uc.store.AppendChunks(ctx, partition, docChunks, vectors); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}

// failureMessage maps a pipeline error to the wording stored on the failed
// record and shown to the uploader.
func failureMessage(filename string, err error) string {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedFile):
		return fmt.Sprintf("Unsupported file type: %s", strings.ToLower(filepath.Ext(filename)))
	case errors.Is(err, errTextTooShort):
		return "Extracted text is too short. Please check the file."
	case errors.Is(err, errNoChunks):
		return "Could not split text into meaningful chunks."
	default:
		return "Report processing failed. Please try again or contact your care team."
	}
}
