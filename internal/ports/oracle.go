package ports

import (
	"context"

	"github.com/viralforge/deal-agents/internal/domain"
)

type DecisionRequest struct {
	Role                   domain.Role
	ContractID             string
	Offer                  domain.TermSet
	History                []domain.Message
	CreatorProfile         domain.CreatorProfile
	AdvertiserRequirements domain.AdvertiserRequirements
	Market                 domain.MarketEstimate
	RoundNumber            int
	MaxRounds              int
}

type AuditRequest struct {
	ContractID string
	Terms      domain.ContractTerms
	Submission domain.ContentSubmission
}

// DecisionOracle returns raw, untrusted text. Callers decode it and fall
// back to a neutral value when it cannot be interpreted.
type DecisionOracle interface {
	Decide(ctx context.Context, req DecisionRequest) (string, error)
	Audit(ctx context.Context, req AuditRequest) (string, error)
}
