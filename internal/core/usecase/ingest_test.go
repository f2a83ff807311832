package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type finalizeCall struct {
	id      string
	status  domain.UploadStatus
	chunks  int
	message string
}

type uploadStoreFake struct {
	created       []*domain.ReportUpload
	createErr     error
	finalizeCalls []finalizeCall
	finalizeErr   error
	hasSuccess    bool
	hasSuccessErr error
	records       []domain.ReportUpload
}

func (f *uploadStoreFake) Create(_ context.Context, rec *domain.ReportUpload) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *rec
	f.created = append(f.created, &copied)
	return nil
}

func (f *uploadStoreFake) Finalize(_ context.Context, id string, status domain.UploadStatus, chunksCreated int, message string) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalizeCalls = append(f.finalizeCalls, finalizeCall{id: id, status: status, chunks: chunksCreated, message: message})
	return nil
}

func (f *uploadStoreFake) HasSuccessfulUpload(context.Context, string) (bool, error) {
	if f.hasSuccessErr != nil {
		return false, f.hasSuccessErr
	}
	return f.hasSuccess, nil
}

func (f *uploadStoreFake) ListByPatient(context.Context, string) ([]domain.ReportUpload, error) {
	return f.records, nil
}

type archiveFake struct {
	key       string
	err       error
	patientID string
	filename  string
	saved     []byte
}

func (f *archiveFake) Save(_ context.Context, patientID, filename string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.patientID = patientID
	f.filename = filename
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.saved = b
	if f.key != "" {
		return f.key, nil
	}
	return patientID + "/archived_" + filename, nil
}

type reportExtractorFake struct {
	text string
	err  error
}

func (f *reportExtractorFake) Extract(context.Context, string, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

func longText() string {
	return strings.Repeat("Patient was discharged in stable condition. ", 5)
}

func newIngestFixture() (*uploadStoreFake, *archiveFake, *reportExtractorFake, *partitionStoreFake, *ReportIngestUseCase) {
	uploads := &uploadStoreFake{}
	archive := &archiveFake{}
	extractor := &reportExtractorFake{text: longText()}
	store := newPartitionStoreFake()
	uc := NewReportIngestUseCase(
		uploads,
		archive,
		extractor,
		&chunkerFake{chunks: []string{"chunk one", "chunk two"}},
		&embedderFake{},
		store,
		IngestLimits{},
	)
	return uploads, archive, extractor, store, uc
}

func TestIngestSuccessIndexesAndFlipsRecordLast(t *testing.T) {
	uploads, archive, _, store, uc := newIngestFixture()

	rec, err := uc.Ingest(context.Background(), "p1", "discharge.pdf", bytes.NewReader([]byte("%PDF-1.4 data")))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if rec.Status != domain.UploadSuccess || rec.ChunksCreated != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Message != "Successfully processed report: 2 chunks indexed" {
		t.Fatalf("unexpected message: %q", rec.Message)
	}

	if len(uploads.created) != 1 {
		t.Fatalf("expected one created record, got %d", len(uploads.created))
	}
	if uploads.created[0].Status != domain.UploadPending {
		t.Fatalf("record must be created pending, got %s", uploads.created[0].Status)
	}
	if uploads.created[0].ArchivePath == "" {
		t.Fatalf("record must carry the archive path from creation")
	}
	if archive.patientID != "p1" || archive.filename != "discharge.pdf" {
		t.Fatalf("archive got %s/%s", archive.patientID, archive.filename)
	}

	if len(uploads.finalizeCalls) != 1 {
		t.Fatalf("expected one finalize call, got %d", len(uploads.finalizeCalls))
	}
	final := uploads.finalizeCalls[0]
	if final.status != domain.UploadSuccess || final.chunks != 2 {
		t.Fatalf("unexpected finalize: %+v", final)
	}

	appended := store.appended["patient_p1"]
	if len(appended) != 2 {
		t.Fatalf("expected 2 chunks appended, got %d", len(appended))
	}
	if appended[0].ChunkIndex != 0 || appended[1].ChunkIndex != 1 {
		t.Fatalf("chunk indices must be contiguous, got %+v", appended)
	}
	if appended[0].SourceFile != "discharge.pdf" || appended[0].OwnerPartition != "patient_p1" {
		t.Fatalf("unexpected chunk metadata: %+v", appended[0])
	}
}

func TestIngestUnsupportedFileRecordsFailure(t *testing.T) {
	uploads, _, extractor, store, uc := newIngestFixture()
	extractor.err = domain.WrapError(domain.ErrUnsupportedFile, "extract report", errors.New(`".docx"`))

	rec, err := uc.Ingest(context.Background(), "p1", "notes.docx", bytes.NewReader([]byte("PK data")))
	if err != nil {
		t.Fatalf("processing failures must not surface as errors, got %v", err)
	}
	if rec.Status != domain.UploadFailed {
		t.Fatalf("expected failed record, got %s", rec.Status)
	}
	if rec.Message != "Unsupported file type: .docx" {
		t.Fatalf("unexpected message: %q", rec.Message)
	}
	if len(uploads.finalizeCalls) != 1 || uploads.finalizeCalls[0].status != domain.UploadFailed {
		t.Fatalf("expected record finalized failed, got %+v", uploads.finalizeCalls)
	}
	if len(store.appended) != 0 {
		t.Fatalf("no chunks may be written for a failed extraction")
	}
}

func TestIngestTooShortTextRecordsFailure(t *testing.T) {
	_, _, extractor, _, uc := newIngestFixture()
	extractor.text = "too short"

	rec, err := uc.Ingest(context.Background(), "p1", "scan.pdf", bytes.NewReader([]byte("%PDF")))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if rec.Status != domain.UploadFailed {
		t.Fatalf("expected failed record, got %s", rec.Status)
	}
	if rec.Message != "Extracted text is too short. Please check the file." {
		t.Fatalf("unexpected message: %q", rec.Message)
	}
}

func TestIngestTemporaryFailurePropagatesAfterRecordingFailure(t *testing.T) {
	uploads := &uploadStoreFake{}
	uc := NewReportIngestUseCase(
		uploads,
		&archiveFake{},
		&reportExtractorFake{text: longText()},
		&chunkerFake{chunks: []string{"chunk"}},
		&embedderFake{err: domain.WrapError(domain.ErrTemporary, "embed", errors.New("ollama unreachable"))},
		newPartitionStoreFake(),
		IngestLimits{},
	)

	_, err := uc.Ingest(context.Background(), "p1", "discharge.pdf", bytes.NewReader([]byte("%PDF")))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary failure to propagate, got %v", err)
	}
	if len(uploads.finalizeCalls) != 1 || uploads.finalizeCalls[0].status != domain.UploadFailed {
		t.Fatalf("record must still be finalized failed, got %+v", uploads.finalizeCalls)
	}
}

func TestIngestOversizeRejectedBeforeAnySideEffect(t *testing.T) {
	uploads := &uploadStoreFake{}
	archive := &archiveFake{}
	uc := NewReportIngestUseCase(
		uploads,
		archive,
		&reportExtractorFake{text: longText()},
		&chunkerFake{chunks: []string{"chunk"}},
		&embedderFake{},
		newPartitionStoreFake(),
		IngestLimits{MaxUploadBytes: 16},
	)

	_, err := uc.Ingest(context.Background(), "p1", "big.pdf", bytes.NewReader(bytes.Repeat([]byte("x"), 17)))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversize upload, got %v", err)
	}
	if archive.saved != nil || len(uploads.created) != 0 {
		t.Fatalf("oversize upload must be rejected before archiving or record creation")
	}
}

func TestIngestEmptyUploadRejected(t *testing.T) {
	_, _, _, _, uc := newIngestFixture()

	_, err := uc.Ingest(context.Background(), "p1", "empty.pdf", bytes.NewReader(nil))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty upload, got %v", err)
	}
}

func TestIngestArchiveFailureIsInfrastructureError(t *testing.T) {
	uploads := &uploadStoreFake{}
	uc := NewReportIngestUseCase(
		uploads,
		&archiveFake{err: errors.New("disk full")},
		&reportExtractorFake{text: longText()},
		&chunkerFake{chunks: []string{"chunk"}},
		&embedderFake{},
		newPartitionStoreFake(),
		IngestLimits{},
	)

	_, err := uc.Ingest(context.Background(), "p1", "discharge.pdf", bytes.NewReader([]byte("%PDF")))
	if err == nil || !strings.Contains(err.Error(), "archive report") {
		t.Fatalf("expected archive failure to surface as an error, got %v", err)
	}
	if len(uploads.created) != 0 {
		t.Fatalf("no record may be created when archiving fails")
	}
}

func TestIngestValidatesIdentity(t *testing.T) {
	_, _, _, _, uc := newIngestFixture()

	if _, err := uc.Ingest(context.Background(), "  ", "a.pdf", bytes.NewReader([]byte("x"))); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank patient id, got %v", err)
	}
	if _, err := uc.Ingest(context.Background(), "p1", "", bytes.NewReader([]byte("x"))); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank filename, got %v", err)
	}
}
