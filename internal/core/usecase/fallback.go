package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

// Triage keyword tiers, scanned most severe first. The lists carry the
// clinically reviewed wording; matching is plain substring search over the
// lower-cased text.
var (
	criticalKeywords = []string{
		"cardiac arrest", "not breathing", "unconscious", "unresponsive",
		"severe bleeding", "major trauma", "stroke symptoms",
	}
	highRiskKeywords = []string{
		"chest pain", "stroke", "heart attack", "severe",
		"breathing difficulty", "confusion", "vision loss", "numbness",
		"weakness", "suicide",
	}
	mediumRiskKeywords = []string{
		"pain", "fever", "infection", "persistent", "worsening", "chronic",
	}
)

const (
	chatReasonCritical = "Life-threatening condition detected. Immediate medical attention required."
	chatReasonHigh     = "Urgent medical attention may be needed within hours."
	chatReasonMedium   = "Medical evaluation recommended soon."
	chatReasonLow      = "General medical information query with no immediate concerns."

	monitoringReasonClear = "No concerning symptoms reported during this check-in."

	maxVerdictReasons = 3
)

// fallbackChatVerdict classifies a chat message by keyword scan alone. It is
// the deterministic safety net when the risk model is unreachable or returns
// an invalid verdict.
func fallbackChatVerdict(message string) domain.RiskVerdict {
	text := strings.ToLower(message)
	switch {
	case containsAny(text, criticalKeywords):
		return domain.RiskVerdict{Level: domain.RiskCritical, Reasons: []string{chatReasonCritical}}
	case containsAny(text, highRiskKeywords):
		return domain.RiskVerdict{Level: domain.RiskHigh, Reasons: []string{chatReasonHigh}}
	case containsAny(text, mediumRiskKeywords):
		return domain.RiskVerdict{Level: domain.RiskMedium, Reasons: []string{chatReasonMedium}}
	}
	return domain.RiskVerdict{Level: domain.RiskLow, Reasons: []string{chatReasonLow}}
}

// fallbackMonitoringVerdict scores a transcript with fixed rules: severity 7+
// or a confirmed high-risk symptom is HIGH, a mid-range severity or any other
// confirmed concern is MEDIUM. The monitoring scale never goes past HIGH.
// The question catalog is phrased so YES and high values always mean concern.
func fallbackMonitoringVerdict(transcript []domain.AskedQuestion) domain.RiskVerdict {
	level := domain.RiskLow
	var reasons []string

	for _, q := range transcript {
		if !q.Answered {
			continue
		}
		switch q.AnswerType {
		case domain.AnswerScale0To10:
			n, err := strconv.Atoi(q.Answer)
			if err != nil {
				continue
			}
			switch {
			case n >= 7:
				level = escalate(level, domain.RiskHigh)
				reasons = append(reasons, fmt.Sprintf("Rated %d/10 for: %s", n, q.Question))
			case n >= 4:
				level = escalate(level, domain.RiskMedium)
				reasons = append(reasons, fmt.Sprintf("Rated %d/10 for: %s", n, q.Question))
			}
		case domain.AnswerYesNo:
			if q.Answer != "YES" {
				continue
			}
			question := strings.ToLower(q.Question)
			if containsAny(question, criticalKeywords) || containsAny(question, highRiskKeywords) {
				level = escalate(level, domain.RiskHigh)
			} else {
				level = escalate(level, domain.RiskMedium)
			}
			reasons = append(reasons, "Answered YES to: "+q.Question)
		case domain.AnswerShortText:
			answer := strings.ToLower(q.Answer)
			switch {
			case containsAny(answer, criticalKeywords), containsAny(answer, highRiskKeywords):
				level = escalate(level, domain.RiskHigh)
				reasons = append(reasons, "Concerning terms in response to: "+q.Question)
			case containsAny(answer, mediumRiskKeywords):
				level = escalate(level, domain.RiskMedium)
				reasons = append(reasons, "Concerning terms in response to: "+q.Question)
			}
		}
	}

	if len(reasons) == 0 {
		reasons = []string{monitoringReasonClear}
	}
	if len(reasons) > maxVerdictReasons {
		reasons = reasons[:maxVerdictReasons]
	}
	return domain.RiskVerdict{Level: level, Reasons: reasons}
}

func escalate(current, candidate domain.RiskLevel) domain.RiskLevel {
	if candidate.Severity() > current.Severity() {
		return candidate
	}
	return current
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
