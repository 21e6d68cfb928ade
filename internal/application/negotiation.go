package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartNegotiation runs the negotiation protocol for a new contract and
// returns the terminal run.
func (s *Service) StartNegotiation(ctx context.Context, input StartNegotiationInput) (domain.NegotiationRun, error) {
	maxRounds := input.MaxRounds
	if maxRounds <= 0 {
		maxRounds = s.cfg.MaxRounds
	}
	run, err := domain.NewNegotiationRun(domain.NewNegotiationInput{
		RunID:                  uuid.NewString(),
		ContractID:             input.ContractID,
		CreatorID:              input.CreatorID,
		AdvertiserID:           input.AdvertiserID,
		CampaignID:             input.CampaignID,
		InitialOffer:           input.InitialOffer,
		CreatorProfile:         input.CreatorProfile,
		AdvertiserRequirements: input.AdvertiserRequirements,
		MaxRounds:              maxRounds,
	}, s.nowFn())
	if err != nil {
		return domain.NegotiationRun{}, err
	}
	return s.executeNegotiation(ctx, run, domain.PhaseAnalyzing)
}

// ResumeNegotiation continues from a caller-held snapshot. A terminal
// snapshot is only re-persisted.
func (s *Service) ResumeNegotiation(ctx context.Context, snapshot domain.NegotiationRun) (domain.NegotiationRun, error) {
	if err := snapshot.ValidateSnapshot(); err != nil {
		return domain.NegotiationRun{}, err
	}
	run := snapshot.Clone()
	run.CurrentOffer = run.CurrentOffer.Normalize()
	run.PersistError = ""
	if strings.TrimSpace(run.RunID) == "" {
		run.RunID = uuid.NewString()
	}
	if run.MaxRounds <= 0 {
		run.MaxRounds = s.cfg.MaxRounds
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.nowFn()
	}

	start := domain.PhaseAnalyzing
	if run.IsTerminal() {
		start = domain.PhaseNegotiationClosing
	}
	return s.executeNegotiation(ctx, run, start)
}

func (s *Service) executeNegotiation(ctx context.Context, run domain.NegotiationRun, phase domain.NegotiationPhase) (domain.NegotiationRun, error) {
	lease, err := s.locker.Acquire(ctx, negotiationLockKey(run.ContractID), s.negotiationLockTTL(run.MaxRounds))
	if err != nil {
		return domain.NegotiationRun{}, err
	}
	defer s.releaseLease(ctx, lease, run.ContractID)

	stored, err := s.ledger.GetNegotiation(ctx, run.ContractID)
	switch {
	case err == nil && stored.IsTerminal():
		if run.IsTerminal() && run.RunID == stored.RunID {
			return stored, nil
		}
		return domain.NegotiationRun{}, fmt.Errorf("%w: %s is %s", domain.ErrNegotiationClosed, run.ContractID, stored.Status)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.NegotiationRun{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	ctx, span := s.tracer.Start(ctx, "negotiation.run", trace.WithAttributes(
		attribute.String("contract_id", run.ContractID),
		attribute.String("run_id", run.RunID),
		attribute.Int("max_rounds", run.MaxRounds),
	))
	defer span.End()

	for {
		span.AddEvent(string(phase), trace.WithAttributes(attribute.Int("round_number", run.RoundNumber)))
		switch phase {
		case domain.PhaseAnalyzing:
			run = run.WithMarketEstimate(s.nowFn())
			phase = domain.PhaseCreatorTurn

		case domain.PhaseCreatorTurn:
			outcome, err := s.decide(ctx, run, domain.RoleCreator)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "creator decision failed")
				return run, err
			}
			run = run.ApplyCreatorDecision(outcome, s.nowFn())
			if run.IsTerminal() {
				phase = domain.PhaseNegotiationClosing
			} else {
				phase = domain.PhaseAdvertiserTurn
			}

		case domain.PhaseAdvertiserTurn:
			outcome, err := s.decide(ctx, run, domain.RoleAdvertiser)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "advertiser decision failed")
				return run, err
			}
			run = run.ApplyAdvertiserDecision(outcome, s.nowFn())
			phase = domain.PhaseCheckingTermination

		case domain.PhaseCheckingTermination:
			run = run.CheckTermination(s.nowFn())
			if run.IsTerminal() {
				phase = domain.PhaseNegotiationClosing
			} else {
				phase = domain.PhaseCreatorTurn
			}

		case domain.PhaseNegotiationClosing:
			run = s.closeNegotiation(ctx, run)
			span.SetAttributes(
				attribute.String("status", string(run.Status)),
				attribute.Int("round_number", run.RoundNumber),
			)
			return run, nil

		default:
			return run, fmt.Errorf("unknown negotiation phase %q", phase)
		}
	}
}

func (s *Service) decide(ctx context.Context, run domain.NegotiationRun, role domain.Role) (domain.DecisionOutcome, error) {
	offer := run.CurrentOffer.Clone()
	if role == domain.RoleAdvertiser {
		offer = run.OfferUnderReview()
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	defer cancel()

	raw, err := s.oracle.Decide(callCtx, ports.DecisionRequest{
		Role:                   role,
		ContractID:             run.ContractID,
		Offer:                  offer,
		History:                run.RecentMessages(domain.ContextWindow),
		CreatorProfile:         run.CreatorProfile,
		AdvertiserRequirements: run.AdvertiserRequirements,
		Market:                 run.Market,
		RoundNumber:            run.RoundNumber,
		MaxRounds:              run.MaxRounds,
	})
	if err != nil {
		return domain.DecisionOutcome{}, fmt.Errorf("%w: %s decision: %v", domain.ErrOracleUnavailable, role, err)
	}
	outcome, err := domain.DecodeDecision(raw)
	if err != nil {
		slog.Default().WarnContext(ctx, "decision response not interpretable, using fallback",
			"module", "application.negotiation",
			"layer", "application",
			"operation", "decide",
			"outcome", "fallback",
			"contract_id", run.ContractID,
			"role", string(role),
			"error", err,
		)
		return domain.FallbackDecision(), nil
	}
	return outcome, nil
}

func (s *Service) closeNegotiation(ctx context.Context, run domain.NegotiationRun) domain.NegotiationRun {
	now := s.nowFn()
	run = run.Close(now)

	var persistErrs []error
	if err := s.ledger.UpsertNegotiation(ctx, run); err != nil {
		persistErrs = append(persistErrs, fmt.Errorf("upsert negotiation: %w", err))
	} else {
		entry := domain.AgentLog{
			LogID:        closingLogID(run.RunID, domain.LogActionNegotiationUpdate, string(run.Status)),
			AgentType:    domain.AgentTypeNegotiation,
			Action:       domain.LogActionNegotiationUpdate,
			ContractID:   run.ContractID,
			CreatorID:    run.CreatorID,
			AdvertiserID: run.AdvertiserID,
			CampaignID:   run.CampaignID,
			Details: map[string]any{
				"run_id":       run.RunID,
				"status":       string(run.Status),
				"round_number": run.RoundNumber,
				"max_rounds":   run.MaxRounds,
				"reasoning":    run.Reasoning,
			},
			CreatedAt: *run.ClosedAt,
		}
		if run.FinalTerms != nil {
			entry.Details["final_base_payment"] = run.FinalTerms.BasePayment
		}
		if err := s.ledger.AppendLog(ctx, entry); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("append log: %w", err))
		}
		if err := s.enqueueNegotiationClosed(ctx, run); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("enqueue event: %w", err))
		}
	}

	outcome := "success"
	if err := errors.Join(persistErrs...); err != nil {
		run.PersistError = err.Error()
		outcome = "failure"
		slog.Default().ErrorContext(ctx, "negotiation closing write failed",
			"module", "application.negotiation",
			"layer", "application",
			"operation", "close_negotiation",
			"outcome", outcome,
			"contract_id", run.ContractID,
			"error", err,
		)
	}
	slog.Default().InfoContext(ctx, "negotiation closed",
		"module", "application.negotiation",
		"layer", "application",
		"operation", "close_negotiation",
		"outcome", outcome,
		"contract_id", run.ContractID,
		"status", string(run.Status),
		"round_number", run.RoundNumber,
	)
	return run
}

// negotiationLockTTL outlasts the longest possible run even when every
// oracle call runs to its timeout.
func (s *Service) negotiationLockTTL(maxRounds int) time.Duration {
	calls := time.Duration(2*maxRounds + 2)
	return max(s.cfg.LockTTL, calls*s.cfg.OracleTimeout+lockTTLMargin)
}

func negotiationLockKey(contractID string) string {
	return "negotiation:" + contractID
}
