package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

// RiskModel runs the JSON-mode triage calls. Both variants share the same
// strict validation: a usable verdict needs a level from the variant's
// scale and at least one non-empty reason.
type RiskModel struct {
	client *Client
}

func NewRiskModel(client *Client) *RiskModel {
	return &RiskModel{client: client}
}

func (m *RiskModel) AssessMonitoring(ctx context.Context, transcript []domain.AskedQuestion, guidance []domain.RetrievedChunk) (domain.RiskVerdict, error) {
	msgs := []message{
		{Role: "system", Content: monitoringRiskSystemPrompt},
		{Role: "user", Content: buildMonitoringRiskPrompt(transcript, guidance)},
	}
	raw, err := m.client.complete(ctx, "monitoring_risk", msgs, completionOptions{temperature: 0.3, maxTokens: 300, jsonMode: true})
	if err != nil {
		return domain.RiskVerdict{}, err
	}
	return parseVerdict(raw, domain.RiskLevel.ValidForMonitoring)
}

func (m *RiskModel) AssessChat(ctx context.Context, messageText string, history []domain.ChatExchange, guidance []domain.RetrievedChunk) (domain.RiskVerdict, error) {
	msgs := []message{
		{Role: "system", Content: chatRiskSystemPrompt},
		{Role: "user", Content: buildChatRiskPrompt(messageText, history, guidance)},
	}
	raw, err := m.client.complete(ctx, "chat_risk", msgs, completionOptions{temperature: 0.3, maxTokens: 300, jsonMode: true})
	if err != nil {
		return domain.RiskVerdict{}, err
	}
	return parseVerdict(raw, domain.RiskLevel.ValidForChat)
}

func parseVerdict(raw string, valid func(domain.RiskLevel) bool) (domain.RiskVerdict, error) {
	var payload struct {
		RiskLevel string          `json:"risk_level"`
		Reason    json.RawMessage `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.RiskVerdict{}, fmt.Errorf("parse risk json: %w", err)
	}

	level := domain.RiskLevel(strings.ToUpper(strings.TrimSpace(payload.RiskLevel)))
	if !valid(level) {
		return domain.RiskVerdict{}, fmt.Errorf("risk model returned level %q", payload.RiskLevel)
	}

	reasons, err := decodeReasons(payload.Reason)
	if err != nil {
		return domain.RiskVerdict{}, err
	}
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	return domain.RiskVerdict{Level: level, Reasons: reasons}, nil
}

// decodeReasons accepts both shapes models actually emit: an array of
// strings or a single string.
func decodeReasons(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("risk model returned no rationale")
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, r := range list {
			if s := strings.TrimSpace(r); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("risk model returned empty rationale")
		}
		return out, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			return []string{s}, nil
		}
	}
	return nil, fmt.Errorf("risk model returned unusable rationale")
}
