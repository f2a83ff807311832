package usecase

import (
	"context"
	"fmt"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
)

// GateUseCase derives the per-patient access gate from upload records. Chat
// and monitoring stay closed until at least one report ingested successfully;
// the state is re-read on every check so a finished ingestion opens the gate
// without any cache invalidation.
type GateUseCase struct {
	uploads ports.UploadRecordStore
}

func NewGateUseCase(uploads ports.UploadRecordStore) *GateUseCase {
	return &GateUseCase{uploads: uploads}
}

// CanProceed fails with domain.ErrNoMedicalReport when the patient has no
// successfully ingested report.
func (uc *GateUseCase) CanProceed(ctx context.Context, patientID string) error {
	ok, err := uc.uploads.HasSuccessfulUpload(ctx, patientID)
	if err != nil {
		return fmt.Errorf("check upload records: %w", err)
	}
	if !ok {
		return domain.WrapError(domain.ErrNoMedicalReport, "gate check", fmt.Errorf("patient %s has no processed report", patientID))
	}
	return nil
}

func (uc *GateUseCase) Status(ctx context.Context, patientID string) (*domain.ReportStatus, error) {
	ok, err := uc.uploads.HasSuccessfulUpload(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check upload records: %w", err)
	}
	return &domain.ReportStatus{
		HasMedicalReport:         ok,
		CanProceedWithMonitoring: ok,
	}, nil
}
