package usecase

import (
	"context"
	"fmt"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
)

type RetrievalLimits struct {
	SharedTopK  int
	PatientTopK int
	Budget      int
}

// DualRetriever runs one query against the shared clinical library and the
// patient's own partition. Results are concatenated shared-first so general
// guidance leads and personal report context follows, then capped by the
// total budget. A missing partition is a hard error: the loader seeds the
// shared library before the API serves traffic, and the gate guarantees the
// patient partition exists before any retrieval path runs.
type DualRetriever struct {
	embedder ports.Embedder
	store    ports.PartitionStore
	limits   RetrievalLimits
}

func NewDualRetriever(embedder ports.Embedder, store ports.PartitionStore, limits RetrievalLimits) *DualRetriever {
	if limits.SharedTopK <= 0 {
		limits.SharedTopK = 3
	}
	if limits.PatientTopK <= 0 {
		limits.PatientTopK = 3
	}
	if limits.Budget <= 0 {
		limits.Budget = limits.SharedTopK + limits.PatientTopK
	}
	return &DualRetriever{
		embedder: embedder,
		store:    store,
		limits:   limits,
	}
}

func (r *DualRetriever) Retrieve(ctx context.Context, patientID, query string) ([]domain.RetrievedChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	shared, err := r.store.Search(ctx, domain.SharedPartition, vector, r.limits.SharedTopK)
	if err != nil {
		return nil, fmt.Errorf("search shared library: %w", err)
	}

	patient, err := r.store.Search(ctx, domain.PatientPartition(patientID), vector, r.limits.PatientTopK)
	if err != nil {
		return nil, fmt.Errorf("search patient reports: %w", err)
	}

	combined := make([]domain.RetrievedChunk, 0, len(shared)+len(patient))
	combined = append(combined, shared...)
	combined = append(combined, patient...)
	if len(combined) > r.limits.Budget {
		combined = combined[:r.limits.Budget]
	}
	return combined, nil
}
