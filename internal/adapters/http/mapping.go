package http

import (
	"strings"

	"github.com/viralforge/deal-agents/internal/application"
	"github.com/viralforge/deal-agents/internal/contracts"
	"github.com/viralforge/deal-agents/internal/domain"
)

func settlementInput(req contracts.SettlementRequest) application.SettlementInput {
	return application.SettlementInput{
		ContractID: strings.TrimSpace(req.ContractID),
		Terms:      req.ContractTerms,
		Submission: req.Submission,
	}
}

// toNegotiationResponse flattens a run for clients. The full snapshot is
// attached when the caller may want to resume from it.
func toNegotiationResponse(run domain.NegotiationRun, withState bool) contracts.NegotiationResponse {
	out := contracts.NegotiationResponse{
		RunID:        run.RunID,
		ContractID:   run.ContractID,
		CreatorID:    run.CreatorID,
		AdvertiserID: run.AdvertiserID,
		CampaignID:   run.CampaignID,
		Status:       string(run.Status),
		RoundNumber:  run.RoundNumber,
		MaxRounds:    run.MaxRounds,
		CurrentOffer: run.CurrentOffer,
		FinalTerms:   run.FinalTerms,
		Reasoning:    run.Reasoning,
		Market:       run.Market,
		Messages:     run.Messages,
		PersistError: run.PersistError,
		StartedAt:    run.StartedAt,
		ClosedAt:     run.ClosedAt,
	}
	if withState {
		state := run.Clone()
		out.State = &state
	}
	return out
}

func toSettlementResponse(run domain.SettlementRun) contracts.SettlementResponse {
	return contracts.SettlementResponse{
		SettlementID:       run.SettlementID,
		ContractID:         run.ContractID,
		Status:             string(run.Status),
		AuditResult:        run.Audit,
		PaymentBreakdown:   run.Breakdown,
		PaymentInstruction: run.Instruction,
		TransactionHash:    run.TransactionHash(),
		Receipt:            run.Transfer,
		TotalPaid:          run.TotalPaid(),
		Error:              run.Error,
		PersistError:       run.PersistError,
		CreatedAt:          run.CreatedAt,
		CompletedAt:        run.CompletedAt,
	}
}
