package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) UpsertNegotiation(ctx context.Context, run domain.NegotiationRun) error {
	rec, err := toNegotiationModel(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(negotiationConflict()).Create(&rec).Error
}

// negotiationConflict only replaces an open run or the same run, so a
// closed negotiation cannot be overwritten by a different one.
func negotiationConflict() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "(negotiation_runs.status = ? OR negotiation_runs.run_id = EXCLUDED.run_id)",
				Vars: []any{string(domain.NegotiationStatusNegotiating)},
			},
		}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "creator_id", "advertiser_id", "campaign_id", "status",
			"round_number", "max_rounds", "snapshot", "started_at", "updated_at", "closed_at",
		}),
	}
}

// UpsertSettlement never overwrites a completed settlement, so a contract's
// paid record survives a stray later write.
func (r *ledgerRepository) UpsertSettlement(ctx context.Context, run domain.SettlementRun) error {
	rec, err := toSettlementModel(run)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(settlementConflict()).Create(&rec).Error
}

func settlementConflict() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "settlements.status <> ?", Vars: []any{string(domain.SettlementStatusCompleted)}},
		}},
		DoUpdates: clause.AssignmentColumns([]string{
			"settlement_id", "status", "total_paid", "transaction_hash", "error",
			"snapshot", "created_at", "completed_at",
		}),
	}
}

func (r *ledgerRepository) AppendLog(ctx context.Context, entry domain.AgentLog) error {
	rec, err := toAgentLogModel(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (r *ledgerRepository) MarkContractSettled(ctx context.Context, contractID, settlementID string, settledAt time.Time) error {
	rec := settledContractModel{
		ContractID:   contractID,
		SettlementID: settlementID,
		SettledAt:    settledAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (r *ledgerRepository) GetNegotiation(ctx context.Context, contractID string) (domain.NegotiationRun, error) {
	var row negotiationRunModel
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NegotiationRun{}, domain.ErrNotFound
		}
		return domain.NegotiationRun{}, err
	}
	return fromNegotiationModel(row)
}

func (r *ledgerRepository) GetSettlement(ctx context.Context, contractID string) (domain.SettlementRun, error) {
	var row settlementModel
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SettlementRun{}, domain.ErrNotFound
		}
		return domain.SettlementRun{}, err
	}
	return fromSettlementModel(row)
}

func (r *ledgerRepository) ListLogs(ctx context.Context, entityID string, limit int) ([]domain.AgentLog, error) {
	var rows []agentLogModel
	query := r.db.WithContext(ctx).
		Where("contract_id = ? OR creator_id = ? OR advertiser_id = ? OR campaign_id = ?", entityID, entityID, entityID, entityID).
		Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AgentLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromAgentLogModel(row))
	}
	return out, nil
}
