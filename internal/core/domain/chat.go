package domain

import "time"

// ChatExchange is one persisted question/answer turn with its triage result.
type ChatExchange struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	RiskLevel RiskLevel `json:"risk_level"`
	Reasons   []string  `json:"reason,omitempty"`
	Sources   []string  `json:"source_documents,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatAnswer is the reply produced for one chat query.
type ChatAnswer struct {
	Answer    string    `json:"answer"`
	RiskLevel RiskLevel `json:"risk_level"`
	Reasons   []string  `json:"reason"`
	Sources   []string  `json:"source_documents"`
	CreatedAt time.Time `json:"timestamp"`
}
