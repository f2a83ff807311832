package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.MonitoringSession) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO monitoring_sessions (id, patient_id, status, max_questions, created_at)
VALUES ($1,$2,$3,$4,$5)
`, session.ID, session.PatientID, string(session.Status), session.MaxQuestions, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.MonitoringSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, patient_id, status, max_questions, risk_level, risk_reasons, action, created_at, completed_at
FROM monitoring_sessions
WHERE id = $1
`, id)

	var session domain.MonitoringSession
	var status string
	var riskLevel, action sql.NullString
	var reasonsRaw []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.PatientID,
		&status,
		&session.MaxQuestions,
		&riskLevel,
		&reasonsRaw,
		&action,
		&session.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.Status = domain.SessionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}
	if riskLevel.Valid {
		assessment := domain.RiskAssessment{
			RiskLevel: domain.RiskLevel(riskLevel.String),
			Action:    action.String,
			CreatedAt: completedAt.Time,
		}
		if len(reasonsRaw) > 0 {
			if err := json.Unmarshal(reasonsRaw, &assessment.Reasons); err != nil {
				return nil, fmt.Errorf("unmarshal risk reasons: %w", err)
			}
		}
		session.Assessment = &assessment
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Questions = questions
	return &session, nil
}

func (r *SessionRepository) listQuestions(ctx context.Context, sessionID string) ([]domain.AskedQuestion, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT question, answer_type, COALESCE(answer, ''), answered, asked_at, answered_at
FROM session_questions
WHERE session_id = $1
ORDER BY position ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AskedQuestion, 0)
	for rows.Next() {
		var q domain.AskedQuestion
		var answerType string
		var answeredAt sql.NullTime
		if err := rows.Scan(&q.Question, &answerType, &q.Answer, &q.Answered, &q.AskedAt, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan session question: %w", err)
		}
		q.AnswerType = domain.AnswerType(answerType)
		if answeredAt.Valid {
			t := answeredAt.Time
			q.AnsweredAt = &t
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session questions: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) AppendQuestion(ctx context.Context, sessionID string, position int, question domain.AskedQuestion) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO session_questions (session_id, position, question, answer_type, answered, asked_at)
VALUES ($1,$2,$3,$4,FALSE,$5)
`, sessionID, position, question.Question, string(question.AnswerType), question.AskedAt)
	if err != nil {
		return fmt.Errorf("append session question: %w", err)
	}
	return nil
}

func (r *SessionRepository) RecordAnswer(ctx context.Context, sessionID string, position int, answer string, answeredAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE session_questions
SET answer = $3, answered = TRUE, answered_at = $4
WHERE session_id = $1 AND position = $2 AND answered = FALSE
`, sessionID, position, answer, answeredAt)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record answer rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no pending question at position %d for session %s", position, sessionID)
	}
	return nil
}

// Complete flips an active session to complete and stores its assessment.
// The status guard makes completion first-writer-wins; a session that has
// already completed reports domain.ErrSessionComplete.
func (r *SessionRepository) Complete(ctx context.Context, sessionID string, assessment domain.RiskAssessment, completedAt time.Time) error {
	reasonsJSON, err := json.Marshal(assessment.Reasons)
	if err != nil {
		return fmt.Errorf("marshal risk reasons: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE monitoring_sessions
SET status = $2, risk_level = $3, risk_reasons = $4, action = $5, completed_at = $6
WHERE id = $1 AND status = $7
`, sessionID, string(domain.SessionComplete), string(assessment.RiskLevel), reasonsJSON, assessment.Action, completedAt, string(domain.SessionActive))
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete session rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrSessionComplete, "complete session", fmt.Errorf("id=%s", sessionID))
	}
	return nil
}
