package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/viralforge/deal-agents/internal/domain"
)

const maxActivityLimit = 100

func (s *Service) GetNegotiation(ctx context.Context, contractID string) (domain.NegotiationRun, error) {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return domain.NegotiationRun{}, fmt.Errorf("%w: contract_id is required", domain.ErrInvalidInput)
	}
	return s.ledger.GetNegotiation(ctx, contractID)
}

func (s *Service) GetSettlement(ctx context.Context, contractID string) (domain.SettlementRun, error) {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return domain.SettlementRun{}, fmt.Errorf("%w: contract_id is required", domain.ErrInvalidInput)
	}
	return s.ledger.GetSettlement(ctx, contractID)
}

// ListActivity returns log entries for a contract, creator, advertiser or
// campaign id, newest first.
func (s *Service) ListActivity(ctx context.Context, entityID string, limit int) ([]domain.AgentLog, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = s.cfg.ActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return s.ledger.ListLogs(ctx, entityID, limit)
}

func (s *Service) NegotiationGraph() domain.Graph {
	return domain.NegotiationGraph()
}

func (s *Service) SettlementGraph() domain.Graph {
	return domain.SettlementGraph()
}

// Readiness reports settlement as degraded when no transfer can be signed.
func (s *Service) Readiness() Readiness {
	out := Readiness{Negotiation: ReadinessReady, Settlement: ReadinessReady}
	if s.oracle == nil || s.ledger == nil {
		out.Negotiation = ReadinessDegraded
		out.Settlement = ReadinessDegraded
	}
	if s.transfer == nil || strings.TrimSpace(s.cfg.SenderAddress) == "" {
		out.Settlement = ReadinessDegraded
	}
	return out
}

func (s *Service) ServiceName() string {
	return s.cfg.ServiceName
}
