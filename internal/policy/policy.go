// Package policy loads the embedded clinical policy table: fixed advisory
// action text per risk tier, the gate advisory, and the deterministic
// fallback question catalog.
package policy

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

//go:embed policy.yaml
var policyYAML []byte

type FallbackQuestion struct {
	Question   string            `yaml:"question"`
	AnswerType domain.AnswerType `yaml:"answer_type"`
}

type GateAdvisory struct {
	Message string `yaml:"message"`
	Action  string `yaml:"action"`
}

type Table struct {
	MonitoringActions map[domain.RiskLevel]string `yaml:"monitoring_actions"`
	ChatActions       map[domain.RiskLevel]string `yaml:"chat_actions"`
	Gate              GateAdvisory                `yaml:"gate"`
	FallbackQuestions []FallbackQuestion          `yaml:"fallback_questions"`
}

// Load parses and validates the embedded table. An incomplete tier is a
// startup error: action text must never be synthesized at runtime.
func Load() (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(policyYAML, &t); err != nil {
		return nil, fmt.Errorf("parse clinical policy: %w", err)
	}
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh} {
		if t.MonitoringActions[level] == "" {
			return nil, fmt.Errorf("clinical policy: missing monitoring action for %s", level)
		}
	}
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical} {
		if t.ChatActions[level] == "" {
			return nil, fmt.Errorf("clinical policy: missing chat action for %s", level)
		}
	}
	if t.Gate.Message == "" || t.Gate.Action == "" {
		return nil, fmt.Errorf("clinical policy: incomplete gate advisory")
	}
	if len(t.FallbackQuestions) <= domain.MaxSessionQuestions {
		return nil, fmt.Errorf("clinical policy: need more than %d fallback questions, have %d",
			domain.MaxSessionQuestions, len(t.FallbackQuestions))
	}
	for i, q := range t.FallbackQuestions {
		if q.Question == "" || !q.AnswerType.Valid() {
			return nil, fmt.Errorf("clinical policy: fallback question %d is invalid", i)
		}
	}
	return &t, nil
}

// MonitoringAction returns the advisory action for a monitoring tier.
func (t *Table) MonitoringAction(level domain.RiskLevel) string {
	return t.MonitoringActions[level]
}

// ChatAction returns the advisory action for a chat triage tier.
func (t *Table) ChatAction(level domain.RiskLevel) string {
	return t.ChatActions[level]
}

// NextFallback returns the first catalog question for which asked reports
// false. The catalog is larger than any session budget, so an active session
// always has an unasked entry left.
func (t *Table) NextFallback(asked func(string) bool) (domain.GeneratedQuestion, bool) {
	for _, q := range t.FallbackQuestions {
		if !asked(q.Question) {
			return domain.GeneratedQuestion{Question: q.Question, AnswerType: q.AnswerType}, true
		}
	}
	return domain.GeneratedQuestion{}, false
}
