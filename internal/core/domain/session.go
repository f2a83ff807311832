package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionComplete SessionStatus = "complete"
)

// AnswerType constrains how a monitoring question may be answered.
type AnswerType string

const (
	AnswerYesNo      AnswerType = "YES_NO"
	AnswerScale0To10 AnswerType = "SCALE_0_10"
	AnswerShortText  AnswerType = "SHORT_TEXT"
)

func (t AnswerType) Valid() bool {
	switch t {
	case AnswerYesNo, AnswerScale0To10, AnswerShortText:
		return true
	}
	return false
}

const (
	// MinSessionQuestions is the floor for an assessment: a session must
	// have at least this many answered questions before it can complete.
	MinSessionQuestions = 3
	// MaxSessionQuestions caps max_questions at session start.
	MaxSessionQuestions = 6

	maxShortTextLen = 500
)

// AskedQuestion is one entry of a session transcript. A question is pending
// until its answer is accepted; the transcript is append-only.
type AskedQuestion struct {
	Question   string     `json:"question"`
	AnswerType AnswerType `json:"answer_type"`
	Answer     string     `json:"answer,omitempty"`
	Answered   bool       `json:"answered"`
	AskedAt    time.Time  `json:"asked_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}

// MonitoringSession is a bounded structured check-in: between
// MinSessionQuestions and MaxQuestions questions, strictly sequential,
// finished by exactly one risk assessment which is then cached.
type MonitoringSession struct {
	ID           string          `json:"id"`
	PatientID    string          `json:"patient_id"`
	Status       SessionStatus   `json:"status"`
	MaxQuestions int             `json:"max_questions"`
	Questions    []AskedQuestion `json:"questions"`
	Assessment   *RiskAssessment `json:"assessment,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func (s *MonitoringSession) AnsweredCount() int {
	n := 0
	for _, q := range s.Questions {
		if q.Answered {
			n++
		}
	}
	return n
}

// Pending returns the index of the question still awaiting an answer.
func (s *MonitoringSession) Pending() (int, bool) {
	for i, q := range s.Questions {
		if !q.Answered {
			return i, true
		}
	}
	return 0, false
}

// HasAsked reports whether a question with the same normalized text was
// already asked in this session.
func (s *MonitoringSession) HasAsked(question string) bool {
	want := NormalizeQuestionText(question)
	for _, q := range s.Questions {
		if NormalizeQuestionText(q.Question) == want {
			return true
		}
	}
	return false
}

// AskedTexts lists the questions asked so far, in order.
func (s *MonitoringSession) AskedTexts() []string {
	texts := make([]string, 0, len(s.Questions))
	for _, q := range s.Questions {
		texts = append(texts, q.Question)
	}
	return texts
}

// NormalizeQuestionText folds case and punctuation so that near-identical
// generated questions count as repeats.
func NormalizeQuestionText(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	q = strings.TrimRight(q, "?.! ")
	return strings.Join(strings.Fields(q), " ")
}

// NormalizeAnswer validates a raw answer against the question type and
// returns its canonical form: YES/NO upper-cased, scale values as a bare
// integer, short text trimmed.
func NormalizeAnswer(t AnswerType, raw string) (string, error) {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", WrapError(ErrInvalidInput, "validate answer", fmt.Errorf("empty answer"))
	}
	switch t {
	case AnswerYesNo:
		switch strings.ToUpper(answer) {
		case "YES":
			return "YES", nil
		case "NO":
			return "NO", nil
		}
		return "", WrapError(ErrInvalidInput, "validate answer", fmt.Errorf("expected YES or NO, got %q", raw))
	case AnswerScale0To10:
		value := strings.TrimSuffix(answer, ".0")
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 10 {
			return "", WrapError(ErrInvalidInput, "validate answer", fmt.Errorf("expected an integer between 0 and 10, got %q", raw))
		}
		return strconv.Itoa(n), nil
	case AnswerShortText:
		if len(answer) > maxShortTextLen {
			return "", WrapError(ErrInvalidInput, "validate answer", fmt.Errorf("answer exceeds %d characters", maxShortTextLen))
		}
		return answer, nil
	}
	return "", WrapError(ErrInvalidInput, "validate answer", fmt.Errorf("unknown answer type %q", t))
}

// GeneratedQuestion is the strict contract the question model must return.
type GeneratedQuestion struct {
	Question    string     `json:"question"`
	AnswerType  AnswerType `json:"answer_type"`
	Explanation string     `json:"explanation,omitempty"`
}

// QuestionPrompt carries the context for generating the next question.
type QuestionPrompt struct {
	QuestionNumber int
	MaxQuestions   int
	History        []AskedQuestion
	Guidance       []RetrievedChunk
	Exclude        []string
}

// NextQuestion is returned to the caller driving a session.
type NextQuestion struct {
	Question       string     `json:"question"`
	AnswerType     AnswerType `json:"answer_type"`
	QuestionNumber int        `json:"question_number"`
}
