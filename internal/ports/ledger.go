package ports

import (
	"context"
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
)

// Ledger persists terminal run snapshots keyed by contract id. Every write
// must be safe to repeat with the same input.
type Ledger interface {
	UpsertNegotiation(ctx context.Context, run domain.NegotiationRun) error
	UpsertSettlement(ctx context.Context, run domain.SettlementRun) error
	AppendLog(ctx context.Context, entry domain.AgentLog) error
	MarkContractSettled(ctx context.Context, contractID, settlementID string, settledAt time.Time) error
	GetNegotiation(ctx context.Context, contractID string) (domain.NegotiationRun, error)
	GetSettlement(ctx context.Context, contractID string) (domain.SettlementRun, error)
	ListLogs(ctx context.Context, entityID string, limit int) ([]domain.AgentLog, error)
}
