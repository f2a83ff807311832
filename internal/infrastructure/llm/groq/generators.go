package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neurowatch/neuromonitor/internal/core/domain"
)

// AnswerGenerator produces the user-facing chat reply.
type AnswerGenerator struct {
	client *Client
}

func NewAnswerGenerator(client *Client) *AnswerGenerator {
	return &AnswerGenerator{client: client}
}

func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, question string, history []domain.ChatExchange, chunks []domain.RetrievedChunk) (string, error) {
	msgs := []message{
		{Role: "system", Content: chatSystemPrompt},
		{Role: "user", Content: buildChatPrompt(question, history, chunks)},
	}
	answer, err := g.client.complete(ctx, "chat_answer", msgs, completionOptions{temperature: 0.7, maxTokens: 500})
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", fmt.Errorf("groq chat_answer: empty completion")
	}
	return answer, nil
}

// QuestionGenerator produces the next check-in question as strict JSON.
type QuestionGenerator struct {
	client *Client
}

func NewQuestionGenerator(client *Client) *QuestionGenerator {
	return &QuestionGenerator{client: client}
}

func (g *QuestionGenerator) GenerateQuestion(ctx context.Context, prompt domain.QuestionPrompt) (domain.GeneratedQuestion, error) {
	msgs := []message{
		{Role: "system", Content: questionSystemPrompt},
		{Role: "user", Content: buildQuestionPrompt(prompt)},
	}
	raw, err := g.client.complete(ctx, "next_question", msgs, completionOptions{temperature: 0.6, maxTokens: 300, jsonMode: true})
	if err != nil {
		return domain.GeneratedQuestion{}, err
	}

	var out domain.GeneratedQuestion
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return domain.GeneratedQuestion{}, fmt.Errorf("parse question json: %w", err)
	}
	out.Question = strings.TrimSpace(out.Question)
	out.AnswerType = domain.AnswerType(strings.ToUpper(strings.TrimSpace(string(out.AnswerType))))
	if out.Question == "" {
		return domain.GeneratedQuestion{}, fmt.Errorf("question model returned an empty question")
	}
	if !out.AnswerType.Valid() {
		return domain.GeneratedQuestion{}, fmt.Errorf("question model returned answer type %q", out.AnswerType)
	}
	return out, nil
}
