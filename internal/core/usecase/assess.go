package usecase

import (
	"context"
	"time"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
)

// RiskEngine turns model verdicts into final triage results. A verdict that
// fails validation or never arrives resolves to the deterministic keyword
// classifier, so an engine call cannot fail. The advisory action is always
// looked up from the clinical policy table, never taken from the model.
type RiskEngine struct {
	model  ports.RiskModel
	policy ports.ClinicalPolicy
}

func NewRiskEngine(model ports.RiskModel, policy ports.ClinicalPolicy) *RiskEngine {
	return &RiskEngine{model: model, policy: policy}
}

func (e *RiskEngine) AssessMonitoring(ctx context.Context, transcript []domain.AskedQuestion, guidance []domain.RetrievedChunk) domain.RiskAssessment {
	verdict, err := e.model.AssessMonitoring(ctx, transcript, guidance)
	if err != nil {
		verdict = fallbackMonitoringVerdict(transcript)
	}
	return domain.RiskAssessment{
		RiskLevel: verdict.Level,
		Reasons:   verdict.Reasons,
		Action:    e.policy.MonitoringAction(verdict.Level),
		CreatedAt: time.Now().UTC(),
	}
}

func (e *RiskEngine) AssessChat(ctx context.Context, message string, history []domain.ChatExchange, guidance []domain.RetrievedChunk) domain.RiskAssessment {
	verdict, err := e.model.AssessChat(ctx, message, history, guidance)
	if err != nil {
		verdict = fallbackChatVerdict(message)
	}
	return domain.RiskAssessment{
		RiskLevel: verdict.Level,
		Reasons:   verdict.Reasons,
		Action:    e.policy.ChatAction(verdict.Level),
		CreatedAt: time.Now().UTC(),
	}
}
