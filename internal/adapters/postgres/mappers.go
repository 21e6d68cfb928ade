package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/viralforge/deal-agents/internal/domain"
)

func toNegotiationModel(run domain.NegotiationRun) (negotiationRunModel, error) {
	snapshot, err := json.Marshal(run)
	if err != nil {
		return negotiationRunModel{}, fmt.Errorf("encode negotiation snapshot: %w", err)
	}
	return negotiationRunModel{
		ContractID:   run.ContractID,
		RunID:        run.RunID,
		CreatorID:    run.CreatorID,
		AdvertiserID: run.AdvertiserID,
		CampaignID:   run.CampaignID,
		Status:       string(run.Status),
		RoundNumber:  run.RoundNumber,
		MaxRounds:    run.MaxRounds,
		Snapshot:     string(snapshot),
		StartedAt:    run.StartedAt,
		UpdatedAt:    run.UpdatedAt,
		ClosedAt:     run.ClosedAt,
	}, nil
}

func fromNegotiationModel(row negotiationRunModel) (domain.NegotiationRun, error) {
	var run domain.NegotiationRun
	if err := json.Unmarshal([]byte(row.Snapshot), &run); err != nil {
		return domain.NegotiationRun{}, fmt.Errorf("decode negotiation snapshot %s: %w", row.ContractID, err)
	}
	return run, nil
}

// toSettlementModel keeps the queryable outcome in columns and the full run
// in the snapshot. PersistError describes this write and is not stored.
func toSettlementModel(run domain.SettlementRun) (settlementModel, error) {
	run.PersistError = ""
	snapshot, err := json.Marshal(run)
	if err != nil {
		return settlementModel{}, fmt.Errorf("encode settlement snapshot: %w", err)
	}
	return settlementModel{
		ContractID:      run.ContractID,
		SettlementID:    run.SettlementID,
		Status:          string(run.Status),
		TotalPaid:       run.TotalPaid(),
		TransactionHash: run.TransactionHash(),
		Error:           run.Error,
		Snapshot:        string(snapshot),
		CreatedAt:       run.CreatedAt,
		CompletedAt:     run.CompletedAt,
	}, nil
}

func fromSettlementModel(row settlementModel) (domain.SettlementRun, error) {
	var run domain.SettlementRun
	if err := json.Unmarshal([]byte(row.Snapshot), &run); err != nil {
		return domain.SettlementRun{}, fmt.Errorf("decode settlement snapshot %s: %w", row.ContractID, err)
	}
	return run, nil
}

func toAgentLogModel(entry domain.AgentLog) (agentLogModel, error) {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return agentLogModel{}, fmt.Errorf("encode log details: %w", err)
	}
	return agentLogModel{
		LogID:        entry.LogID,
		AgentType:    entry.AgentType,
		Action:       entry.Action,
		ContractID:   entry.ContractID,
		CreatorID:    entry.CreatorID,
		AdvertiserID: entry.AdvertiserID,
		CampaignID:   entry.CampaignID,
		Details:      string(raw),
		CreatedAt:    entry.CreatedAt,
	}, nil
}

func fromAgentLogModel(row agentLogModel) domain.AgentLog {
	details := map[string]any{}
	if row.Details != "" {
		_ = json.Unmarshal([]byte(row.Details), &details)
	}
	return domain.AgentLog{
		LogID:        row.LogID,
		AgentType:    row.AgentType,
		Action:       row.Action,
		ContractID:   row.ContractID,
		CreatorID:    row.CreatorID,
		AdvertiserID: row.AdvertiserID,
		CampaignID:   row.CampaignID,
		Details:      details,
		CreatedAt:    row.CreatedAt,
	}
}
