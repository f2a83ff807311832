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

type MonitoringLimits struct {
	// DefaultMaxQuestions is used when a start request omits max_questions.
	DefaultMaxQuestions int
}

// MonitoringUseCase drives the structured check-in state machine: strictly
// sequential question/answer rounds followed by exactly one risk assessment.
// A keyed mutex serializes all operations per session, so out-of-order calls
// fail as client errors instead of corrupting the transcript.
type MonitoringUseCase struct {
	gate       *GateUseCase
	sessions   ports.SessionStore
	retriever  *DualRetriever
	generator  ports.QuestionGenerator
	risk       *RiskEngine
	alerts     ports.AlertPublisher
	policy     ports.ClinicalPolicy
	limits     MonitoringLimits
	perSession *keyedMutex
}

func NewMonitoringUseCase(
	gate *GateUseCase,
	sessions ports.SessionStore,
	retriever *DualRetriever,
	generator ports.QuestionGenerator,
	risk *RiskEngine,
	alerts ports.AlertPublisher,
	policy ports.ClinicalPolicy,
	limits MonitoringLimits,
) *MonitoringUseCase {
	if limits.DefaultMaxQuestions <= 0 {
		limits.DefaultMaxQuestions = 5
	}
	return &MonitoringUseCase{
		gate:       gate,
		sessions:   sessions,
		retriever:  retriever,
		generator:  generator,
		risk:       risk,
		alerts:     alerts,
		policy:     policy,
		limits:     limits,
		perSession: newKeyedMutex(),
	}
}

func (uc *MonitoringUseCase) Start(ctx context.Context, patientID string, maxQuestions int) (*domain.MonitoringSession, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "start session", errors.New("patient_id is required"))
	}
	if maxQuestions == 0 {
		maxQuestions = uc.limits.DefaultMaxQuestions
	}
	if maxQuestions < domain.MinSessionQuestions || maxQuestions > domain.MaxSessionQuestions {
		return nil, domain.WrapError(domain.ErrInvalidInput, "start session",
			fmt.Errorf("max_questions must be between %d and %d", domain.MinSessionQuestions, domain.MaxSessionQuestions))
	}

	if err := uc.gate.CanProceed(ctx, patientID); err != nil {
		return nil, err
	}

	session := &domain.MonitoringSession{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		Status:       domain.SessionActive,
		MaxQuestions: maxQuestions,
		CreatedAt:    time.Now().UTC(),
	}
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (uc *MonitoringUseCase) NextQuestion(ctx context.Context, sessionID string) (*domain.NextQuestion, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "next question", errors.New("session id is required"))
	}

	unlock := uc.perSession.lock(sessionID)
	defer unlock()

	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.SessionComplete {
		return nil, domain.WrapError(domain.ErrSessionComplete, "next question", fmt.Errorf("session %s", sessionID))
	}
	if idx, pending := session.Pending(); pending {
		return nil, domain.WrapError(domain.ErrQuestionPending, "next question",
			fmt.Errorf("question %d is awaiting an answer", idx+1))
	}
	if len(session.Questions) >= session.MaxQuestions {
		return nil, domain.WrapError(domain.ErrSessionComplete, "next question",
			errors.New("question budget exhausted, request the assessment"))
	}

	if err := uc.gate.CanProceed(ctx, session.PatientID); err != nil {
		return nil, err
	}

	// Guidance retrieval is best-effort here: generation degrades to the
	// catalog if neither guidance nor the model can help.
	guidance, err := uc.retriever.Retrieve(ctx, session.PatientID, guidanceQuery(session))
	if err != nil {
		guidance = nil
	}

	generated, err := uc.generateQuestion(ctx, session, guidance)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	position := len(session.Questions)
	asked := domain.AskedQuestion{
		Question:   generated.Question,
		AnswerType: generated.AnswerType,
		AskedAt:    now,
	}
	if err := uc.sessions.AppendQuestion(ctx, sessionID, position, asked); err != nil {
		return nil, fmt.Errorf("append question: %w", err)
	}

	return &domain.NextQuestion{
		Question:       generated.Question,
		AnswerType:     generated.AnswerType,
		QuestionNumber: position + 1,
	}, nil
}

func (uc *MonitoringUseCase) SubmitAnswer(ctx context.Context, sessionID, question, answer string, answerType domain.AnswerType) (*domain.MonitoringSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit answer", errors.New("session id is required"))
	}

	unlock := uc.perSession.lock(sessionID)
	defer unlock()

	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.SessionComplete {
		return nil, domain.WrapError(domain.ErrSessionComplete, "submit answer", fmt.Errorf("session %s", sessionID))
	}

	idx, pending := session.Pending()
	if !pending {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit answer",
			errors.New("no question is awaiting an answer"))
	}
	current := session.Questions[idx]
	if domain.NormalizeQuestionText(question) != domain.NormalizeQuestionText(current.Question) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit answer",
			errors.New("submitted question does not match the pending question"))
	}
	if answerType != current.AnswerType {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit answer",
			fmt.Errorf("expected answer_type %s, got %s", current.AnswerType, answerType))
	}

	canonical, err := domain.NormalizeAnswer(current.AnswerType, answer)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := uc.sessions.RecordAnswer(ctx, sessionID, idx, canonical, now); err != nil {
		return nil, fmt.Errorf("record answer: %w", err)
	}

	session.Questions[idx].Answer = canonical
	session.Questions[idx].Answered = true
	session.Questions[idx].AnsweredAt = &now
	return session, nil
}

func (uc *MonitoringUseCase) Assess(ctx context.Context, sessionID string) (*domain.SessionAssessment, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "assess session", errors.New("session id is required"))
	}

	unlock := uc.perSession.lock(sessionID)
	defer unlock()

	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.SessionComplete {
		return cachedAssessment(session)
	}

	if idx, pending := session.Pending(); pending {
		return nil, domain.WrapError(domain.ErrQuestionPending, "assess session",
			fmt.Errorf("question %d is awaiting an answer", idx+1))
	}
	if answered := session.AnsweredCount(); answered < domain.MinSessionQuestions {
		return nil, domain.WrapError(domain.ErrInvalidInput, "assess session",
			fmt.Errorf("at least %d answered questions required, have %d", domain.MinSessionQuestions, answered))
	}

	if err := uc.gate.CanProceed(ctx, session.PatientID); err != nil {
		return nil, err
	}

	// Assessment must not be blocked by the vector store: guidance is
	// additive context, the transcript alone is enough to triage.
	guidance, err := uc.retriever.Retrieve(ctx, session.PatientID, guidanceQuery(session))
	if err != nil {
		guidance = nil
	}

	assessment := uc.risk.AssessMonitoring(ctx, session.Questions, guidance)

	completedAt := time.Now().UTC()
	if err := uc.sessions.Complete(ctx, sessionID, assessment, completedAt); err != nil {
		if domain.IsKind(err, domain.ErrSessionComplete) {
			// Lost the completion race; serve whoever won.
			fresh, getErr := uc.sessions.Get(ctx, sessionID)
			if getErr != nil {
				return nil, getErr
			}
			return cachedAssessment(fresh)
		}
		return nil, fmt.Errorf("complete session: %w", err)
	}

	session.Status = domain.SessionComplete
	session.Assessment = &assessment
	session.CompletedAt = &completedAt

	if assessment.RiskLevel.AtLeast(domain.RiskHigh) {
		// Fire-and-forget; the publisher logs failures.
		_ = uc.alerts.PublishRiskAlert(ctx, domain.RiskAlert{
			PatientID: session.PatientID,
			SessionID: session.ID,
			AlertType: domain.AlertHighRiskMonitoring,
			Message:   fmt.Sprintf("%s risk at monitoring check-in: %s", assessment.RiskLevel, assessment.Reasons[0]),
			Severity:  assessment.RiskLevel,
			Source:    domain.AlertSourceMonitoring,
			CreatedAt: completedAt,
		})
	}

	return &domain.SessionAssessment{
		RiskAssessment:      assessment,
		TotalQuestionsAsked: len(session.Questions),
	}, nil
}

// generateQuestion asks the model for the next question, retrying once on an
// invalid or repeated result, then falls back to the deterministic catalog.
func (uc *MonitoringUseCase) generateQuestion(ctx context.Context, session *domain.MonitoringSession, guidance []domain.RetrievedChunk) (domain.GeneratedQuestion, error) {
	prompt := domain.QuestionPrompt{
		QuestionNumber: len(session.Questions) + 1,
		MaxQuestions:   session.MaxQuestions,
		History:        session.Questions,
		Guidance:       guidance,
		Exclude:        session.AskedTexts(),
	}

	generated, err := uc.generator.GenerateQuestion(ctx, prompt)
	if err == nil {
		if validateGenerated(session, generated) == nil {
			return generated, nil
		}
		if strings.TrimSpace(generated.Question) != "" {
			prompt.Exclude = append(prompt.Exclude, generated.Question)
		}
		retried, retryErr := uc.generator.GenerateQuestion(ctx, prompt)
		if retryErr == nil && validateGenerated(session, retried) == nil {
			return retried, nil
		}
	}

	fallback, ok := uc.policy.NextFallback(session.HasAsked)
	if !ok {
		return domain.GeneratedQuestion{}, errors.New("next question: fallback catalog exhausted")
	}
	return fallback, nil
}

func validateGenerated(session *domain.MonitoringSession, generated domain.GeneratedQuestion) error {
	if strings.TrimSpace(generated.Question) == "" {
		return errors.New("empty question")
	}
	if !generated.AnswerType.Valid() {
		return fmt.Errorf("invalid answer type %q", generated.AnswerType)
	}
	if session.HasAsked(generated.Question) {
		return errors.New("question repeats an earlier one")
	}
	return nil
}

// guidanceQuery derives the retrieval query from the transcript so guidance
// tracks what the patient actually reported.
func guidanceQuery(session *domain.MonitoringSession) string {
	parts := make([]string, 0, len(session.Questions))
	for _, q := range session.Questions {
		if !q.Answered {
			continue
		}
		parts = append(parts, q.Question+" "+q.Answer)
	}
	if len(parts) == 0 {
		return "post-discharge neurological symptom monitoring"
	}
	return strings.Join(parts, " ")
}

func cachedAssessment(session *domain.MonitoringSession) (*domain.SessionAssessment, error) {
	if session.Assessment == nil {
		return nil, fmt.Errorf("session %s is complete but has no assessment", session.ID)
	}
	return &domain.SessionAssessment{
		RiskAssessment:      *session.Assessment,
		TotalQuestionsAsked: len(session.Questions),
	}, nil
}
