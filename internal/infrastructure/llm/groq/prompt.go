package groq

import (
	"fmt"
	"strings"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

const chatSystemPrompt = `You are a post-discharge care assistant for neurological patients.
Answer only from the provided clinical context and the patient's own history.
Plain language, at most four sentences, calm tone.
If the context is insufficient, say so directly.
Never diagnose and never change medication or dosage; urgent concerns go to a doctor.`

const questionSystemPrompt = `You generate one follow-up question for a structured symptom check-in.
Return strict JSON object with keys:
question (string), answer_type (YES_NO | SCALE_0_10 | SHORT_TEXT), explanation (string).
One symptom per question, simple words. Never repeat an excluded question.
No markdown, no extra keys.`

const monitoringRiskSystemPrompt = `You triage a completed symptom check-in for a discharged neurological patient.
Return strict JSON object with keys:
risk_level (LOW | MEDIUM | HIGH), reason (array of 1 to 3 short strings citing the answers).
No diagnosis, no medication advice, no markdown, no extra keys.`

const chatRiskSystemPrompt = `You triage one message from a discharged neurological patient.
Return strict JSON object with keys:
risk_level (LOW | MEDIUM | HIGH | CRITICAL), reason (array of 1 to 3 short strings citing the message).
CRITICAL is only for immediately life-threatening descriptions such as unresponsiveness, absent breathing, or stroke signs.
No diagnosis, no medication advice, no markdown, no extra keys.`

func buildChatPrompt(question string, history []domain.ChatExchange, chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Clinical context:\n")
	b.WriteString(formatChunks(chunks))
	if len(history) > 0 {
		b.WriteString("\nRecent conversation (oldest first):\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "Patient: %s\nAssistant: %s\n", ex.Question, ex.Answer)
		}
	}
	fmt.Fprintf(&b, "\nPatient question:\n%s\n", question)
	return b.String()
}

func buildQuestionPrompt(p domain.QuestionPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d for today's check-in.\n\n", p.QuestionNumber, p.MaxQuestions)
	b.WriteString("Clinical context:\n")
	b.WriteString(formatChunks(p.Guidance))
	if len(p.History) > 0 {
		b.WriteString("\nAnswers so far:\n")
		b.WriteString(formatTranscript(p.History))
	}
	if len(p.Exclude) > 0 {
		b.WriteString("\nDo not repeat any of these questions:\n")
		for _, q := range p.Exclude {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}

func buildMonitoringRiskPrompt(transcript []domain.AskedQuestion, guidance []domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Completed check-in transcript:\n")
	b.WriteString(formatTranscript(transcript))
	if len(guidance) > 0 {
		b.WriteString("\nClinical context:\n")
		b.WriteString(formatChunks(guidance))
	}
	return b.String()
}

func buildChatRiskPrompt(messageText string, history []domain.ChatExchange, guidance []domain.RetrievedChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient message:\n%s\n", messageText)
	if len(history) > 0 {
		b.WriteString("\nEarlier messages (oldest first):\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "Patient: %s (assessed %s)\n", ex.Question, ex.RiskLevel)
		}
	}
	if len(guidance) > 0 {
		b.WriteString("\nClinical context:\n")
		b.WriteString(formatChunks(guidance))
	}
	return b.String()
}

func formatChunks(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "(none)\n"
	}
	const maxChunkChars = 600
	var b strings.Builder
	for i, chunk := range chunks {
		text := chunk.Text
		if len(text) > maxChunkChars {
			text = text[:maxChunkChars]
		}
		fmt.Fprintf(&b, "[%d] source=%s score=%.3f\n%s\n\n", i+1, chunk.SourceRef(), chunk.Score, text)
	}
	return b.String()
}

func formatTranscript(transcript []domain.AskedQuestion) string {
	var b strings.Builder
	for i, q := range transcript {
		answer := q.Answer
		if !q.Answered {
			answer = "(unanswered)"
		}
		fmt.Fprintf(&b, "%d. Q (%s): %s\n   A: %s\n", i+1, q.AnswerType, q.Question, answer)
	}
	return b.String()
}
