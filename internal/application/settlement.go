package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditContent runs the audit and pricing steps without moving funds.
// Nothing is persisted.
func (s *Service) AuditContent(ctx context.Context, input SettlementInput) (AuditOutcome, error) {
	run, err := s.newSettlementRun(input)
	if err != nil {
		return AuditOutcome{}, err
	}
	ctx, span := s.tracer.Start(ctx, "settlement.audit", trace.WithAttributes(attribute.String("contract_id", run.ContractID)))
	defer span.End()

	audit, err := s.audit(ctx, run)
	if err != nil {
		span.RecordError(err)
		return AuditOutcome{}, err
	}
	run = run.WithAudit(audit, s.nowFn()).WithPayment()
	return AuditOutcome{ContractID: run.ContractID, Audit: audit, Breakdown: run.Breakdown}, nil
}

// Settle runs the full pipeline for one submission. At most one transfer is
// attempted, and never for a contract that already settled or whose last
// transfer outcome is unknown.
func (s *Service) Settle(ctx context.Context, input SettlementInput) (domain.SettlementRun, error) {
	run, err := s.newSettlementRun(input)
	if err != nil {
		return domain.SettlementRun{}, err
	}
	lease, err := s.locker.Acquire(ctx, settlementLockKey(run.ContractID), s.settlementLockTTL())
	if err != nil {
		return domain.SettlementRun{}, err
	}
	defer s.releaseLease(ctx, lease, run.ContractID)

	existing, err := s.ledger.GetSettlement(ctx, run.ContractID)
	switch {
	case err == nil && existing.Status == domain.SettlementStatusCompleted:
		return domain.SettlementRun{}, fmt.Errorf("%w: %s", domain.ErrAlreadySettled, run.ContractID)
	case err == nil && existing.NeedsReconciliation():
		return domain.SettlementRun{}, fmt.Errorf("%w: contract %s settlement %s is %s (tx %q)",
			domain.ErrNeedsReconciliation, run.ContractID, existing.SettlementID, existing.Status, existing.TransactionHash())
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.SettlementRun{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	ctx, span := s.tracer.Start(ctx, "settlement.run", trace.WithAttributes(
		attribute.String("contract_id", run.ContractID),
		attribute.String("settlement_id", run.SettlementID),
	))
	defer span.End()

	phase := domain.PhasePendingAudit
	for {
		span.AddEvent(string(phase))
		switch phase {
		case domain.PhasePendingAudit:
			audit, err := s.audit(ctx, run)
			if err != nil {
				span.RecordError(err)
				run = run.Fail("content audit failed: "+err.Error(), s.nowFn())
				phase = domain.PhaseSettlementClosing
				continue
			}
			run = run.WithAudit(audit, s.nowFn())
			if run.IsTerminal() {
				phase = domain.PhaseSettlementClosing
			} else {
				phase = domain.PhaseCalculating
			}

		case domain.PhaseCalculating:
			run = run.WithPayment()
			phase = domain.PhasePreparing

		case domain.PhasePreparing:
			instruction, err := run.PrepareInstruction(s.cfg.SenderAddress, s.cfg.Network)
			if err != nil {
				run = run.Fail(err.Error(), s.nowFn())
				phase = domain.PhaseSettlementClosing
				continue
			}
			run = run.WithInstruction(instruction)
			// The processing record must be durable before funds can move; a
			// later Settle treats it as an unknown outcome.
			if err := s.ledger.UpsertSettlement(ctx, run); err != nil {
				span.RecordError(err)
				run = run.Fail("settlement could not be recorded before transfer: "+err.Error(), s.nowFn())
				phase = domain.PhaseSettlementClosing
				continue
			}
			phase = domain.PhaseTransferring

		case domain.PhaseTransferring:
			run = s.executeTransfer(ctx, run)
			phase = domain.PhaseSettlementClosing

		case domain.PhaseSettlementClosing:
			run = s.closeSettlement(ctx, run)
			span.SetAttributes(
				attribute.String("status", string(run.Status)),
				attribute.Float64("total_paid", run.TotalPaid()),
			)
			return run, nil

		default:
			return run, fmt.Errorf("unknown settlement phase %q", phase)
		}
	}
}

func (s *Service) newSettlementRun(input SettlementInput) (domain.SettlementRun, error) {
	return domain.NewSettlementRun(domain.NewSettlementInput{
		SettlementID: uuid.NewString(),
		ContractID:   input.ContractID,
		Terms:        input.Terms,
		Submission:   input.Submission,
	}, s.nowFn())
}

func (s *Service) audit(ctx context.Context, run domain.SettlementRun) (domain.AuditResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()

	raw, err := s.oracle.Audit(callCtx, ports.AuditRequest{
		ContractID: run.ContractID,
		Terms:      run.Terms.Clone(),
		Submission: run.Submission,
	})
	if err != nil {
		return domain.AuditResult{}, fmt.Errorf("%w: audit: %v", domain.ErrOracleUnavailable, err)
	}
	audit, err := domain.DecodeAudit(raw)
	if err != nil {
		slog.Default().WarnContext(ctx, "audit response not interpretable, using fallback",
			"module", "application.settlement",
			"layer", "application",
			"operation", "audit",
			"outcome", "fallback",
			"contract_id", run.ContractID,
			"error", err,
		)
		return domain.FallbackAudit(), nil
	}
	return audit, nil
}

func (s *Service) executeTransfer(ctx context.Context, run domain.SettlementRun) domain.SettlementRun {
	if s.transfer == nil {
		return run.WithTransferError(domain.ErrTransferNotConfigured, s.nowFn())
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.TransferTimeout)
	defer cancel()

	receipt, err := s.transfer.Transfer(callCtx, *run.Instruction)
	if err != nil {
		slog.Default().ErrorContext(ctx, "transfer failed",
			"module", "application.settlement",
			"layer", "application",
			"operation", "transfer",
			"outcome", "failure",
			"contract_id", run.ContractID,
			"network", run.Instruction.Network,
			"error", err,
		)
		return run.WithTransferError(err, s.nowFn())
	}
	return run.WithTransfer(receipt, s.nowFn())
}

func (s *Service) closeSettlement(ctx context.Context, run domain.SettlementRun) domain.SettlementRun {
	var persistErrs []error
	if err := s.ledger.UpsertSettlement(ctx, run); err != nil {
		persistErrs = append(persistErrs, fmt.Errorf("upsert settlement: %w", err))
	} else {
		if run.Status == domain.SettlementStatusCompleted {
			if err := s.ledger.MarkContractSettled(ctx, run.ContractID, run.SettlementID, *run.CompletedAt); err != nil {
				persistErrs = append(persistErrs, fmt.Errorf("mark contract settled: %w", err))
			}
		}
		if err := s.ledger.AppendLog(ctx, settlementLogEntry(run, s.nowFn())); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("append log: %w", err))
		}
		if err := s.enqueueSettlementClosed(ctx, run); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("enqueue event: %w", err))
		}
	}

	outcome := "success"
	if err := errors.Join(persistErrs...); err != nil {
		run.PersistError = err.Error()
		outcome = "failure"
		slog.Default().ErrorContext(ctx, "settlement closing write failed",
			"module", "application.settlement",
			"layer", "application",
			"operation", "close_settlement",
			"outcome", outcome,
			"contract_id", run.ContractID,
			"error", err,
		)
	}
	slog.Default().InfoContext(ctx, "settlement closed",
		"module", "application.settlement",
		"layer", "application",
		"operation", "close_settlement",
		"outcome", outcome,
		"contract_id", run.ContractID,
		"status", string(run.Status),
		"total_paid", run.TotalPaid(),
		"transaction_hash", run.TransactionHash(),
	)
	return run
}

func settlementLogEntry(run domain.SettlementRun, now time.Time) domain.AgentLog {
	createdAt := now
	if run.CompletedAt != nil {
		createdAt = *run.CompletedAt
	}
	details := map[string]any{
		"settlement_id":    run.SettlementID,
		"status":           string(run.Status),
		"total_paid":       run.TotalPaid(),
		"transaction_hash": run.TransactionHash(),
		"error":            run.Error,
	}
	if run.Audit != nil {
		details["content_score"] = run.Audit.ContentScore
		details["tier_achieved"] = run.Audit.TierAchieved
		details["brand_safety"] = run.Audit.BrandSafe
	}
	if run.Instruction != nil {
		details["network"] = run.Instruction.Network
		details["token"] = run.Instruction.Token
	}
	return domain.AgentLog{
		LogID:      closingLogID(run.SettlementID, domain.LogActionSettlement, string(run.Status)),
		AgentType:  domain.AgentTypePayment,
		Action:     domain.LogActionSettlement,
		ContractID: run.ContractID,
		Details:    details,
		CreatedAt:  createdAt,
	}
}

// settlementLockTTL covers one audit and one transfer wait.
func (s *Service) settlementLockTTL() time.Duration {
	return max(s.cfg.LockTTL, s.cfg.OracleTimeout+s.cfg.TransferTimeout+lockTTLMargin)
}

func settlementLockKey(contractID string) string {
	return "settlement:" + contractID
}
