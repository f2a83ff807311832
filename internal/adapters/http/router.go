// Package httpadapter exposes the patient-facing REST surface: report
// ingestion, the report gate, RAG chat and monitoring sessions.
package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/neurowatch/neuromonitor/internal/config"
	"github.com/neurowatch/neuromonitor/internal/core/domain"
	"github.com/neurowatch/neuromonitor/internal/core/ports"
	"github.com/neurowatch/neuromonitor/internal/observability/metrics"
	"github.com/neurowatch/neuromonitor/internal/policy"
)

const serviceName = "api"

type Router struct {
	cfg        config.Config
	ingestor   ports.ReportIngestor
	gate       ports.GateReader
	chat       ports.ChatService
	monitoring ports.MonitoringService
	advisory   policy.GateAdvisory
	metrics    *metrics.APIMetrics
	limiter    *rate.Limiter
}

func NewRouter(
	cfg config.Config,
	ingestor ports.ReportIngestor,
	gate ports.GateReader,
	chat ports.ChatService,
	monitoring ports.MonitoringService,
	advisory policy.GateAdvisory,
) *Router {
	var limiter *rate.Limiter
	if cfg.APIRateLimitRPS > 0 {
		burst := cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = cfg.APIRateLimitRPS
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), burst)
	}

	return &Router{
		cfg:        cfg,
		ingestor:   ingestor,
		gate:       gate,
		chat:       chat,
		monitoring: monitoring,
		advisory:   advisory,
		metrics:    metrics.NewAPIMetrics(serviceName),
		limiter:    limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	mux.HandleFunc("POST /patient/{patient_id}/upload-report", rt.uploadReport)
	mux.HandleFunc("GET /patient/{patient_id}/report/status", rt.reportStatus)
	mux.HandleFunc("GET /patient/{patient_id}/chat/history", rt.chatHistory)
	mux.HandleFunc("POST /chat/query", rt.chatQuery)
	mux.HandleFunc("POST /monitoring/session/start", rt.startSession)
	mux.HandleFunc("POST /monitoring/session/{session_id}/next-question", rt.nextQuestion)
	mux.HandleFunc("POST /monitoring/session/{session_id}/submit-answer", rt.submitAnswer)
	mux.HandleFunc("POST /monitoring/session/{session_id}/assessment", rt.assessment)

	var handler http.Handler = mux
	if rt.cfg.APIMaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, backpressureWait)
	}
	if rt.limiter != nil {
		handler = rateLimitMiddleware(handler, rt.limiter)
	}
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadReportResponse struct {
	Success     bool      `json:"success"`
	ChunksCount int       `json:"chunks_count"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

func (rt *Router) uploadReport(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("patient_id"))
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_id is required"})
		return
	}

	if rt.cfg.UploadMaxBytes > 0 {
		// Cap leaves headroom for multipart framing around the file part;
		// the exact per-file limit is enforced by the ingestor.
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.UploadMaxBytes+64<<10)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("upload exceeds the %d byte limit", rt.cfg.UploadMaxBytes),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	start := time.Now()
	rec, err := rt.ingestor.Ingest(r.Context(), patientID, header.Filename, file)
	if err != nil {
		rt.metrics.RecordIngest(serviceName, "error", 0, time.Since(start))
		rt.writeDomainError(w, err)
		return
	}
	rt.metrics.RecordIngest(serviceName, string(rec.Status), rec.ChunksCreated, time.Since(start))

	writeJSON(w, http.StatusOK, uploadReportResponse{
		Success:     rec.Status == domain.UploadSuccess,
		ChunksCount: rec.ChunksCreated,
		Message:     rec.Message,
		Timestamp:   rec.UpdatedAt,
	})
}

func (rt *Router) reportStatus(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("patient_id"))
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_id is required"})
		return
	}

	status, err := rt.gate.Status(r.Context(), patientID)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) chatQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID string `json:"patient_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.chat.Query(r.Context(), req.PatientID, req.Message)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	rt.metrics.RecordChat(serviceName, string(answer.RiskLevel), len(answer.Sources), time.Since(start))

	writeJSON(w, http.StatusOK, answer)
}

type chatHistoryResponse struct {
	PatientID string                `json:"patient_id"`
	History   []domain.ChatExchange `json:"history"`
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("patient_id"))
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_id is required"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	history, err := rt.chat.History(r.Context(), patientID, limit)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	if history == nil {
		history = []domain.ChatExchange{}
	}
	writeJSON(w, http.StatusOK, chatHistoryResponse{PatientID: patientID, History: history})
}

type startSessionResponse struct {
	SessionID    string `json:"session_id"`
	MaxQuestions int    `json:"max_questions"`
	Status       string `json:"status"`
}

func (rt *Router) startSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID    string `json:"patient_id"`
		MaxQuestions int    `json:"max_questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	session, err := rt.monitoring.Start(r.Context(), req.PatientID, req.MaxQuestions)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	rt.metrics.RecordSessionStarted(serviceName)

	writeJSON(w, http.StatusOK, startSessionResponse{
		SessionID:    session.ID,
		MaxQuestions: session.MaxQuestions,
		Status:       string(session.Status),
	})
}

func (rt *Router) nextQuestion(w http.ResponseWriter, r *http.Request) {
	next, err := rt.monitoring.NextQuestion(r.Context(), r.PathValue("session_id"))
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

type submitAnswerResponse struct {
	Accepted      bool `json:"accepted"`
	AnsweredCount int  `json:"answered_count"`
}

func (rt *Router) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question   string     `json:"question"`
		Answer     flexString `json:"answer"`
		AnswerType string     `json:"answer_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	session, err := rt.monitoring.SubmitAnswer(
		r.Context(),
		r.PathValue("session_id"),
		req.Question,
		string(req.Answer),
		domain.AnswerType(req.AnswerType),
	)
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitAnswerResponse{
		Accepted:      true,
		AnsweredCount: session.AnsweredCount(),
	})
}

type assessmentResponse struct {
	RiskLevel           domain.RiskLevel `json:"risk_level"`
	Reason              []string         `json:"reason"`
	Action              string           `json:"action"`
	TotalQuestionsAsked int              `json:"total_questions_asked"`
	Timestamp           time.Time        `json:"timestamp"`
}

func (rt *Router) assessment(w http.ResponseWriter, r *http.Request) {
	result, err := rt.monitoring.Assess(r.Context(), r.PathValue("session_id"))
	if err != nil {
		rt.writeDomainError(w, err)
		return
	}
	rt.metrics.RecordAssessment(serviceName, string(result.RiskLevel))

	writeJSON(w, http.StatusOK, assessmentResponse{
		RiskLevel:           result.RiskLevel,
		Reason:              result.Reasons,
		Action:              result.Action,
		TotalQuestionsAsked: result.TotalQuestionsAsked,
		Timestamp:           result.CreatedAt,
	})
}

// flexString accepts scale answers sent either as a JSON string or as a bare
// number; clients driven from native widgets send both.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*s = flexString(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*s = flexString(asNumber.String())
		return nil
	}
	return fmt.Errorf("answer must be a string or a number")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
