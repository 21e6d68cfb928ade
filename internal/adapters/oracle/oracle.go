package oracle

import (
	"context"

	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

const (
	decisionTemperature = 0.7
	auditTemperature    = 0.3
)

type chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// LLMOracle implements ports.DecisionOracle on top of a chat model. It
// returns the raw answer; decoding belongs to the domain.
type LLMOracle struct {
	chat chatter
}

func NewLLMOracle(client *ChatClient) *LLMOracle {
	return &LLMOracle{chat: client}
}

func (o *LLMOracle) Decide(ctx context.Context, req ports.DecisionRequest) (string, error) {
	prompt := creatorPrompt(req)
	if req.Role == domain.RoleAdvertiser {
		prompt = advertiserPrompt(req)
	}
	return o.chat.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: systemPromptFor(req.Role)},
			{Role: "user", Content: prompt},
		},
		Temperature: decisionTemperature,
	})
}

func (o *LLMOracle) Audit(ctx context.Context, req ports.AuditRequest) (string, error) {
	return o.chat.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "You are an objective content auditor."},
			{Role: "user", Content: auditPrompt(req)},
		},
		Temperature: auditTemperature,
	})
}
