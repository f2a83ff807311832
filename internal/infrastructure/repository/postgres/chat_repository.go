package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Append(ctx context.Context, exchange *domain.ChatExchange) error {
	reasonsJSON, err := json.Marshal(exchange.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	sourcesJSON, err := json.Marshal(exchange.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_messages (id, patient_id, question, answer, risk_level, risk_reasons, sources, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, exchange.ID, exchange.PatientID, exchange.Question, exchange.Answer, string(exchange.RiskLevel), reasonsJSON, sourcesJSON, exchange.CreatedAt)
	if err != nil {
		return fmt.Errorf("append chat exchange: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListRecent(ctx context.Context, patientID string, limit int) ([]domain.ChatExchange, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, patient_id, question, answer, risk_level, risk_reasons, sources, created_at
FROM chat_messages
WHERE patient_id = $1
ORDER BY created_at DESC
LIMIT $2
`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatExchange, 0, limit)
	for rows.Next() {
		var exchange domain.ChatExchange
		var riskLevel string
		var reasonsRaw, sourcesRaw []byte
		if err := rows.Scan(
			&exchange.ID,
			&exchange.PatientID,
			&exchange.Question,
			&exchange.Answer,
			&riskLevel,
			&reasonsRaw,
			&sourcesRaw,
			&exchange.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat exchange: %w", err)
		}
		exchange.RiskLevel = domain.RiskLevel(riskLevel)
		if len(reasonsRaw) > 0 {
			if err := json.Unmarshal(reasonsRaw, &exchange.Reasons); err != nil {
				return nil, fmt.Errorf("unmarshal reasons: %w", err)
			}
		}
		if len(sourcesRaw) > 0 {
			if err := json.Unmarshal(sourcesRaw, &exchange.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		out = append(out, exchange)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
