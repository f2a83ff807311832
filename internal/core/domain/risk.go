package domain

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Severity orders levels for threshold checks; higher is worse. Unknown
// levels order below LOW.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

func (l RiskLevel) AtLeast(min RiskLevel) bool {
	return l.Severity() >= 0 && l.Severity() >= min.Severity()
}

// ValidForMonitoring reports whether the level belongs to the monitoring
// scale. Structured check-ins never escalate to CRITICAL; that level is
// reserved for live chat triage.
func (l RiskLevel) ValidForMonitoring() bool {
	return l == RiskLow || l == RiskMedium || l == RiskHigh
}

func (l RiskLevel) ValidForChat() bool {
	return l.ValidForMonitoring() || l == RiskCritical
}

// RiskVerdict is the level plus rationale produced by the risk model before
// the policy action text is attached.
type RiskVerdict struct {
	Level   RiskLevel
	Reasons []string
}

// RiskAssessment is the final triage result. Action text always comes from
// the clinical policy table, never from the model.
type RiskAssessment struct {
	RiskLevel RiskLevel `json:"risk_level"`
	Reasons   []string  `json:"reason"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionAssessment pairs a session's cached assessment with its transcript
// size.
type SessionAssessment struct {
	RiskAssessment
	TotalQuestionsAsked int `json:"total_questions_asked"`
}

const (
	AlertHighRiskChat       = "HIGH_RISK_FROM_CHATBOT"
	AlertHighRiskMonitoring = "HIGH_RISK_FROM_MONITORING"

	AlertSourceChat       = "ai_chatbot"
	AlertSourceMonitoring = "monitoring_session"
)

// RiskAlert is the notification published to the alert broker when an
// assessment crosses the high-risk threshold.
type RiskAlert struct {
	PatientID string    `json:"patient_id"`
	SessionID string    `json:"session_id,omitempty"`
	AlertType string    `json:"alert_type"`
	Message   string    `json:"message"`
	Severity  RiskLevel `json:"severity"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
