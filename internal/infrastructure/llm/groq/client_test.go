package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

func TestGenerateAnswerSendsModelAndContext(t *testing.T) {
	var capturedAuth string
	var capturedPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		capturedAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&capturedPayload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(completionResponse("Rest and keep the wound dry.")))
	}))
	defer server.Close()

	client := New(server.URL, "secret", "llama-3.3-70b-versatile", 0, nil)
	gen := NewAnswerGenerator(client)
	answer, err := gen.GenerateAnswer(context.Background(), "How do I care for my incision?", nil, []domain.RetrievedChunk{
		{Text: "Keep the incision clean and dry.", SourceFile: "discharge.pdf", OwnerPartition: "shared", Score: 0.91},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "Rest and keep the wound dry." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if capturedAuth != "Bearer secret" {
		t.Fatalf("unexpected Authorization header: %q", capturedAuth)
	}
	if capturedPayload["model"] != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected model: %v", capturedPayload["model"])
	}
	if _, ok := capturedPayload["response_format"]; ok {
		t.Fatalf("answer generation should not force json mode")
	}
	raw, _ := json.Marshal(capturedPayload["messages"])
	prompt := string(raw)
	if !strings.Contains(prompt, "How do I care for my incision?") || !strings.Contains(prompt, "Keep the incision clean and dry.") {
		t.Fatalf("prompt missing question or guidance: %s", prompt)
	}
}

func TestGenerateQuestionParsesJSONMode(t *testing.T) {
	var capturedPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedPayload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(completionResponse(`{"question":"Any new headaches today?","answer_type":"yes_no","explanation":"headache screening"}`)))
	}))
	defer server.Close()

	client := New(server.URL, "secret", "llama-3.3-70b-versatile", 0, nil)
	gen := NewQuestionGenerator(client)
	q, err := gen.GenerateQuestion(context.Background(), domain.QuestionPrompt{QuestionNumber: 2, MaxQuestions: 5, Exclude: []string{"How is your pain level?"}})
	if err != nil {
		t.Fatalf("GenerateQuestion() error = %v", err)
	}
	if q.Question != "Any new headaches today?" {
		t.Fatalf("unexpected question: %q", q.Question)
	}
	if q.AnswerType != domain.AnswerYesNo {
		t.Fatalf("unexpected answer type: %q", q.AnswerType)
	}
	format, _ := capturedPayload["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", capturedPayload["response_format"])
	}
	raw, _ := json.Marshal(capturedPayload["messages"])
	if !strings.Contains(string(raw), "How is your pain level?") {
		t.Fatalf("excluded question missing from prompt: %s", raw)
	}
}

func TestGenerateQuestionRejectsUnknownAnswerType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse(`{"question":"Rate your mood","answer_type":"multiple_choice"}`)))
	}))
	defer server.Close()

	client := New(server.URL, "secret", "llama-3.3-70b-versatile", 0, nil)
	gen := NewQuestionGenerator(client)
	_, err := gen.GenerateQuestion(context.Background(), domain.QuestionPrompt{QuestionNumber: 1, MaxQuestions: 5})
	if err == nil {
		t.Fatalf("expected error for unknown answer type")
	}
	if !strings.Contains(err.Error(), "multiple_choice") {
		t.Fatalf("expected offending type in error, got %v", err)
	}
}

func TestRiskLevelValidatedPerVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse(`{"risk_level":"CRITICAL","reason":["patient reports loss of consciousness"]}`)))
	}))
	defer server.Close()

	client := New(server.URL, "secret", "llama-3.3-70b-versatile", 0, nil)
	model := NewRiskModel(client)

	if _, err := model.AssessMonitoring(context.Background(), nil, nil); err == nil {
		t.Fatalf("monitoring triage must reject CRITICAL")
	}

	verdict, err := model.AssessChat(context.Background(), "I blacked out", nil, nil)
	if err != nil {
		t.Fatalf("AssessChat() error = %v", err)
	}
	if verdict.Level != domain.RiskCritical {
		t.Fatalf("unexpected level: %q", verdict.Level)
	}
	if len(verdict.Reasons) != 1 || !strings.Contains(verdict.Reasons[0], "consciousness") {
		t.Fatalf("unexpected reasons: %v", verdict.Reasons)
	}
}

func TestRiskVerdictToleratesProseWrappedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse("Here is the triage:\n```json\n{\"risk_level\":\"medium\",\"reason\":\"persistent dizziness\"}\n```")))
	}))
	defer server.Close()

	client := New(server.URL, "secret", "llama-3.3-70b-versatile", 0, nil)
	model := NewRiskModel(client)
	verdict, err := model.AssessMonitoring(context.Background(), []domain.AskedQuestion{
		{Question: "Any dizziness?", AnswerType: domain.AnswerYesNo, Answer: "YES", Answered: true},
	}, nil)
	if err != nil {
		t.Fatalf("AssessMonitoring() error = %v", err)
	}
	if verdict.Level != domain.RiskMedium {
		t.Fatalf("unexpected level: %q", verdict.Level)
	}
	if len(verdict.Reasons) != 1 || verdict.Reasons[0] != "persistent dizziness" {
		t.Fatalf("unexpected reasons: %v", verdict.Reasons)
	}
}

func TestRiskVerdictRequiresRationale(t *testing.T) {
	if _, err := parseVerdict(`{"risk_level":"LOW","reason":[]}`, domain.RiskLevel.ValidForMonitoring); err == nil {
		t.Fatalf("expected error for empty rationale")
	}
	if _, err := parseVerdict(`{"risk_level":"LOW"}`, domain.RiskLevel.ValidForMonitoring); err == nil {
		t.Fatalf("expected error for missing rationale")
	}
	verdict, err := parseVerdict(`{"risk_level":"LOW","reason":["a","b","c","d"]}`, domain.RiskLevel.ValidForMonitoring)
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if len(verdict.Reasons) != 3 {
		t.Fatalf("expected reasons capped at 3, got %d", len(verdict.Reasons))
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "capacity exceeded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "secret", "llama-3.3-70b-versatile", 0, nil)
	gen := NewAnswerGenerator(client)
	_, err := gen.GenerateAnswer(context.Background(), "hello", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "capacity exceeded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}
