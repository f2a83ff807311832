package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
)

type ChatLimits struct {
	// HistoryContext is how many recent exchanges feed the answer prompt
	// and the risk model.
	HistoryContext int
}

// ChatUseCase answers patient questions grounded in the shared clinical
// library and the patient's own reports. Every reply is risk-triaged before
// it is returned; the exchange is persisted first, the alert (if any) is
// fire-and-forget.
type ChatUseCase struct {
	gate      *GateUseCase
	history   ports.ChatHistoryStore
	retriever *DualRetriever
	generator ports.AnswerGenerator
	risk      *RiskEngine
	alerts    ports.AlertPublisher
	limits    ChatLimits
}

func NewChatUseCase(
	gate *GateUseCase,
	history ports.ChatHistoryStore,
	retriever *DualRetriever,
	generator ports.AnswerGenerator,
	risk *RiskEngine,
	alerts ports.AlertPublisher,
	limits ChatLimits,
) *ChatUseCase {
	if limits.HistoryContext <= 0 {
		limits.HistoryContext = 2
	}
	return &ChatUseCase{
		gate:      gate,
		history:   history,
		retriever: retriever,
		generator: generator,
		risk:      risk,
		alerts:    alerts,
		limits:    limits,
	}
}

func (uc *ChatUseCase) Query(ctx context.Context, patientID, message string) (*domain.ChatAnswer, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat query", errors.New("patient_id is required"))
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat query", errors.New("message is required"))
	}

	if err := uc.gate.CanProceed(ctx, patientID); err != nil {
		return nil, err
	}

	history, err := uc.history.ListRecent(ctx, patientID, uc.limits.HistoryContext)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	chunks, err := uc.retriever.Retrieve(ctx, patientID, message)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, message, history, chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	assessment := uc.risk.AssessChat(ctx, message, history, chunks)

	now := time.Now().UTC()
	exchange := &domain.ChatExchange{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Question:  message,
		Answer:    answerText,
		RiskLevel: assessment.RiskLevel,
		Reasons:   assessment.Reasons,
		Sources:   sourceRefs(chunks),
		CreatedAt: now,
	}
	if err := uc.history.Append(ctx, exchange); err != nil {
		return nil, fmt.Errorf("persist exchange: %w", err)
	}

	if assessment.RiskLevel.AtLeast(domain.RiskHigh) {
		// Fire-and-forget: the publisher logs failures, the reply
		// must not depend on broker health.
		_ = uc.alerts.PublishRiskAlert(ctx, domain.RiskAlert{
			PatientID: patientID,
			AlertType: domain.AlertHighRiskChat,
			Message:   fmt.Sprintf("%s risk detected during chat triage: %s", assessment.RiskLevel, assessment.Reasons[0]),
			Severity:  assessment.RiskLevel,
			Source:    domain.AlertSourceChat,
			CreatedAt: now,
		})
	}

	return &domain.ChatAnswer{
		Answer:    answerText,
		RiskLevel: assessment.RiskLevel,
		Reasons:   assessment.Reasons,
		Sources:   exchange.Sources,
		CreatedAt: now,
	}, nil
}

// History returns the persisted transcript, oldest first. It is not gated:
// reading past conversation never triggers retrieval or generation.
func (uc *ChatUseCase) History(ctx context.Context, patientID string, limit int) ([]domain.ChatExchange, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat history", errors.New("patient_id is required"))
	}
	if limit <= 0 {
		limit = 50
	}
	exchanges, err := uc.history.ListRecent(ctx, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return exchanges, nil
}

// sourceRefs deduplicates chunk attributions preserving first-seen order.
func sourceRefs(chunks []domain.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	refs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		ref := chunk.SourceRef()
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}
