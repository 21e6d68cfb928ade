package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viralforge/deal-agents/internal/contracts"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

const eventSchemaVersion = "1.0"

func (s *Service) enqueueNegotiationClosed(ctx context.Context, run domain.NegotiationRun) error {
	closedAt := s.nowFn()
	if run.ClosedAt != nil {
		closedAt = *run.ClosedAt
	}
	data := contracts.NegotiationClosedPayload{
		ContractID:   run.ContractID,
		RunID:        run.RunID,
		CreatorID:    run.CreatorID,
		AdvertiserID: run.AdvertiserID,
		Status:       string(run.Status),
		RoundNumber:  run.RoundNumber,
		FinalTerms:   run.FinalTerms,
		Reasoning:    run.Reasoning,
		ClosedAt:     closedAt.Format(time.RFC3339),
	}
	return s.enqueue(ctx, domain.EventNegotiationClosed, run.RunID, string(run.Status), run.ContractID, closedAt, data)
}

func (s *Service) enqueueSettlementClosed(ctx context.Context, run domain.SettlementRun) error {
	closedAt := s.nowFn()
	if run.CompletedAt != nil {
		closedAt = *run.CompletedAt
	}
	data := contracts.SettlementClosedPayload{
		ContractID:      run.ContractID,
		SettlementID:    run.SettlementID,
		Status:          string(run.Status),
		TotalPaid:       run.TotalPaid(),
		TransactionHash: run.TransactionHash(),
		Error:           run.Error,
		ClosedAt:        closedAt.Format(time.RFC3339),
	}
	return s.enqueue(ctx, domain.EventSettlementClosed, run.SettlementID, string(run.Status), run.ContractID, closedAt, data)
}

func (s *Service) enqueue(ctx context.Context, eventType, runID, status, contractID string, occurredAt time.Time, data any) error {
	if s.outbox == nil {
		return nil
	}
	rawData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	eventID := closingEventID(runID, eventType, status)
	envelope := contracts.EventEnvelope{
		EventID:          eventID.String(),
		EventType:        eventType,
		OccurredAt:       occurredAt,
		PartitionKeyPath: "data.contract_id",
		PartitionKey:     contractID,
		SourceService:    s.cfg.ServiceName,
		SchemaVersion:    eventSchemaVersion,
		Data:             rawData,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:          eventID,
		EventType:        eventType,
		PartitionKey:     contractID,
		PartitionKeyPath: "data.contract_id",
		Payload:          payload,
		OccurredAt:       occurredAt,
		SchemaVersion:    eventSchemaVersion,
	})
}

// HandleContentSubmitted settles a contract from a content-submitted event.
// Duplicate deliveries for settled or busy contracts are skipped.
func (s *Service) HandleContentSubmitted(ctx context.Context, payload []byte) error {
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("%w: decode event envelope: %v", domain.ErrInvalidInput, err)
	}
	if envelope.EventType != "" && envelope.EventType != domain.EventContentSubmitted {
		return nil
	}
	var data contracts.ContentSubmittedPayload
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return fmt.Errorf("%w: decode content submission: %v", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(data.ContractID) == "" {
		data.ContractID = envelope.PartitionKey
	}

	run, err := s.Settle(ctx, SettlementInput{
		ContractID: data.ContractID,
		Terms:      data.ContractTerms,
		Submission: data.Submission,
	})
	switch {
	case errors.Is(err, domain.ErrAlreadySettled), errors.Is(err, domain.ErrRunInProgress):
		slog.Default().InfoContext(ctx, "content submission skipped",
			"module", "application.events",
			"layer", "application",
			"operation", "handle_content_submitted",
			"outcome", "skipped",
			"contract_id", data.ContractID,
			"event_id", envelope.EventID,
			"reason", err.Error(),
		)
		return nil
	case errors.Is(err, domain.ErrNeedsReconciliation):
		slog.Default().WarnContext(ctx, "content submission held for reconciliation",
			"module", "application.events",
			"layer", "application",
			"operation", "handle_content_submitted",
			"outcome", "skipped",
			"contract_id", data.ContractID,
			"event_id", envelope.EventID,
			"reason", err.Error(),
		)
		return nil
	case err != nil:
		return err
	}
	slog.Default().InfoContext(ctx, "content submission settled",
		"module", "application.events",
		"layer", "application",
		"operation", "handle_content_submitted",
		"outcome", "success",
		"contract_id", run.ContractID,
		"event_id", envelope.EventID,
		"status", string(run.Status),
	)
	return nil
}
