package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type chatStoreFake struct {
	recent    []domain.ChatExchange
	listErr   error
	appended  []*domain.ChatExchange
	appendErr error
	gotLimit  int
}

func (f *chatStoreFake) Append(_ context.Context, exchange *domain.ChatExchange) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, exchange)
	return nil
}

func (f *chatStoreFake) ListRecent(_ context.Context, _ string, limit int) ([]domain.ChatExchange, error) {
	f.gotLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.recent, nil
}

type answerGeneratorFake struct {
	answer     string
	err        error
	gotHistory []domain.ChatExchange
	gotChunks  []domain.RetrievedChunk
}

func (f *answerGeneratorFake) GenerateAnswer(_ context.Context, _ string, history []domain.ChatExchange, chunks []domain.RetrievedChunk) (string, error) {
	f.gotHistory = history
	f.gotChunks = chunks
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type alertPublisherFake struct {
	alerts []domain.RiskAlert
	err    error
}

func (f *alertPublisherFake) PublishRiskAlert(_ context.Context, alert domain.RiskAlert) error {
	f.alerts = append(f.alerts, alert)
	return f.err
}

type chatFixture struct {
	uploads   *uploadStoreFake
	store     *partitionStoreFake
	history   *chatStoreFake
	generator *answerGeneratorFake
	model     *riskModelFake
	alerts    *alertPublisherFake
	uc        *ChatUseCase
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	uploads := &uploadStoreFake{hasSuccess: true}
	store := newPartitionStoreFake()
	store.results[domain.SharedPartition] = []domain.RetrievedChunk{chunkNamed("shared", "recovery_guide.md", 0.9)}
	store.results["patient_p1"] = []domain.RetrievedChunk{chunkNamed("patient_p1", "discharge.pdf", 0.8)}

	history := &chatStoreFake{}
	generator := &answerGeneratorFake{answer: "Rest and take your prescribed medication."}
	model := &riskModelFake{chat: domain.RiskVerdict{Level: domain.RiskLow, Reasons: []string{"General recovery question."}}}
	alerts := &alertPublisherFake{}

	uc := NewChatUseCase(
		NewGateUseCase(uploads),
		history,
		NewDualRetriever(&embedderFake{}, store, RetrievalLimits{}),
		generator,
		NewRiskEngine(model, loadPolicy(t)),
		alerts,
		ChatLimits{HistoryContext: 2},
	)
	return &chatFixture{
		uploads:   uploads,
		store:     store,
		history:   history,
		generator: generator,
		model:     model,
		alerts:    alerts,
		uc:        uc,
	}
}

func TestChatQueryAnswersAndPersistsExchange(t *testing.T) {
	fx := newChatFixture(t)

	answer, err := fx.uc.Query(context.Background(), "p1", "When can I stop taking my medication?")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer.Answer != "Rest and take your prescribed medication." {
		t.Fatalf("unexpected answer: %q", answer.Answer)
	}
	if answer.RiskLevel != domain.RiskLow {
		t.Fatalf("unexpected level: %s", answer.RiskLevel)
	}
	if len(answer.Sources) != 2 || answer.Sources[0] != "shared/recovery_guide.md" || answer.Sources[1] != "patient_p1/discharge.pdf" {
		t.Fatalf("unexpected sources: %v", answer.Sources)
	}

	if len(fx.history.appended) != 1 {
		t.Fatalf("expected one persisted exchange, got %d", len(fx.history.appended))
	}
	saved := fx.history.appended[0]
	if saved.Question != "When can I stop taking my medication?" || saved.PatientID != "p1" {
		t.Fatalf("unexpected exchange: %+v", saved)
	}
	if saved.ID == "" {
		t.Fatalf("exchange must get an id")
	}
	if len(fx.alerts.alerts) != 0 {
		t.Fatalf("LOW risk must not alert, got %+v", fx.alerts.alerts)
	}
}

func TestChatQueryClosedGate(t *testing.T) {
	fx := newChatFixture(t)
	fx.uploads.hasSuccess = false

	_, err := fx.uc.Query(context.Background(), "p1", "hello")
	if !domain.IsKind(err, domain.ErrNoMedicalReport) {
		t.Fatalf("expected gate rejection, got %v", err)
	}
	if len(fx.store.searched) != 0 {
		t.Fatalf("closed gate must not reach retrieval")
	}
}

func TestChatQueryHighRiskPublishesAlert(t *testing.T) {
	fx := newChatFixture(t)
	fx.model.chat = domain.RiskVerdict{
		Level:   domain.RiskCritical,
		Reasons: []string{"Symptoms consistent with stroke recurrence."},
	}

	answer, err := fx.uc.Query(context.Background(), "p1", "my face is drooping and I cannot lift my arm")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer.RiskLevel != domain.RiskCritical {
		t.Fatalf("unexpected level: %s", answer.RiskLevel)
	}
	if len(fx.alerts.alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(fx.alerts.alerts))
	}
	alert := fx.alerts.alerts[0]
	if alert.AlertType != domain.AlertHighRiskChat || alert.Source != domain.AlertSourceChat {
		t.Fatalf("unexpected alert routing: %+v", alert)
	}
	if alert.Severity != domain.RiskCritical || alert.PatientID != "p1" {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if !strings.Contains(alert.Message, "CRITICAL") {
		t.Fatalf("alert message should carry the level, got %q", alert.Message)
	}
}

func TestChatQueryAlertFailureDoesNotFailReply(t *testing.T) {
	fx := newChatFixture(t)
	fx.model.chat = domain.RiskVerdict{Level: domain.RiskHigh, Reasons: []string{"Worsening deficit."}}
	fx.alerts.err = errors.New("nats unavailable")

	answer, err := fx.uc.Query(context.Background(), "p1", "my weakness is getting worse")
	if err != nil {
		t.Fatalf("alert failure must not fail the reply, got %v", err)
	}
	if answer.RiskLevel != domain.RiskHigh {
		t.Fatalf("unexpected level: %s", answer.RiskLevel)
	}
}

func TestChatQueryModelFailureFallsBackNeverErrors(t *testing.T) {
	fx := newChatFixture(t)
	fx.model.chatErr = errors.New("malformed model payload")

	answer, err := fx.uc.Query(context.Background(), "p1", "I have severe chest pain right now")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer.RiskLevel != domain.RiskHigh {
		t.Fatalf("keyword fallback should flag HIGH, got %s", answer.RiskLevel)
	}
	if len(fx.alerts.alerts) != 1 {
		t.Fatalf("fallback HIGH must still alert")
	}
}

func TestChatQueryGeneratorFailurePropagates(t *testing.T) {
	fx := newChatFixture(t)
	fx.generator.err = domain.WrapError(domain.ErrTemporary, "groq chat", errors.New("over capacity"))

	_, err := fx.uc.Query(context.Background(), "p1", "how do I sleep better")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary failure, got %v", err)
	}
	if len(fx.history.appended) != 0 {
		t.Fatalf("failed generation must not persist an exchange")
	}
}

func TestChatHistoryBypassesGateAndDefaultsLimit(t *testing.T) {
	fx := newChatFixture(t)
	fx.uploads.hasSuccess = false
	fx.history.recent = []domain.ChatExchange{{Question: "q", Answer: "a"}}

	exchanges, err := fx.uc.History(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(exchanges) != 1 {
		t.Fatalf("expected history rows, got %d", len(exchanges))
	}
	if fx.history.gotLimit != 50 {
		t.Fatalf("expected default limit 50, got %d", fx.history.gotLimit)
	}
}
