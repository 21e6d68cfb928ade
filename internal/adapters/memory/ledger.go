package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
)

type settledContract struct {
	SettlementID string
	SettledAt    time.Time
}

// Ledger keeps run snapshots in process memory. It backs local runs and
// tests when no database is configured.
type Ledger struct {
	mu           sync.RWMutex
	negotiations map[string]domain.NegotiationRun
	settlements  map[string]domain.SettlementRun
	settled      map[string]settledContract
	logs         []domain.AgentLog
	logIDs       map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		negotiations: make(map[string]domain.NegotiationRun),
		settlements:  make(map[string]domain.SettlementRun),
		settled:      make(map[string]settledContract),
		logIDs:       make(map[string]struct{}),
	}
}

func (l *Ledger) UpsertNegotiation(_ context.Context, run domain.NegotiationRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.negotiations[run.ContractID]; ok && current.IsTerminal() && current.RunID != run.RunID {
		return nil
	}
	l.negotiations[run.ContractID] = run.Clone()
	return nil
}

func (l *Ledger) UpsertSettlement(_ context.Context, run domain.SettlementRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.settlements[run.ContractID]; ok && current.Status == domain.SettlementStatusCompleted {
		return nil
	}
	l.settlements[run.ContractID] = run.Clone()
	return nil
}

func (l *Ledger) AppendLog(_ context.Context, entry domain.AgentLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.logIDs[entry.LogID]; ok {
		return nil
	}
	l.logIDs[entry.LogID] = struct{}{}
	l.logs = append(l.logs, entry)
	return nil
}

func (l *Ledger) MarkContractSettled(_ context.Context, contractID, settlementID string, settledAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.settled[contractID]; ok {
		return nil
	}
	l.settled[contractID] = settledContract{SettlementID: settlementID, SettledAt: settledAt}
	return nil
}

func (l *Ledger) GetNegotiation(_ context.Context, contractID string) (domain.NegotiationRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.negotiations[contractID]
	if !ok {
		return domain.NegotiationRun{}, domain.ErrNotFound
	}
	return run.Clone(), nil
}

func (l *Ledger) GetSettlement(_ context.Context, contractID string) (domain.SettlementRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.settlements[contractID]
	if !ok {
		return domain.SettlementRun{}, domain.ErrNotFound
	}
	return run.Clone(), nil
}

func (l *Ledger) ListLogs(_ context.Context, entityID string, limit int) ([]domain.AgentLog, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]domain.AgentLog, 0)
	for _, entry := range l.logs {
		if entry.Matches(entityID) {
			items = append(items, entry)
		}
	}
	slices.SortStableFunc(items, func(a, b domain.AgentLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// IsSettled reports whether the contract was marked settled and by which
// settlement.
func (l *Ledger) IsSettled(contractID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.settled[contractID]
	return rec.SettlementID, ok
}

func (l *Ledger) LogCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.logs)
}
