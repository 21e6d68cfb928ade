package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/viralforge/deal-agents/internal/contracts"
	"github.com/viralforge/deal-agents/internal/domain"
)

func TestSettleCompletesTieredPayment(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)

	run, err := h.svc.Settle(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if run.Status != domain.SettlementStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", run.Status, run.Error)
	}
	if run.Breakdown == nil || run.Breakdown.BasePayment != 500 || run.Breakdown.BonusPayment != 200 || run.Breakdown.TotalPayment != 700 {
		t.Fatalf("unexpected breakdown: %+v", run.Breakdown)
	}
	if transfer.calls() != 1 {
		t.Fatalf("expected one transfer, got %d", transfer.calls())
	}
	instruction := transfer.instructions[0]
	if instruction.AmountBaseUnits != "700000000" || instruction.Recipient != testWallet || instruction.Sender != testSender {
		t.Fatalf("unexpected instruction: %+v", instruction)
	}
	if instruction.Network != domain.NetworkBase || instruction.TokenAddress == "" {
		t.Fatalf("expected base network token address, got %+v", instruction)
	}
	if run.TransactionHash() != "0xfeed" || run.TotalPaid() != 700 {
		t.Fatalf("expected hash and total paid, got %q %v", run.TransactionHash(), run.TotalPaid())
	}
	if id, ok := h.ledger.IsSettled("contract-1"); !ok || id != run.SettlementID {
		t.Fatalf("expected contract to be marked settled, got %q %v", id, ok)
	}
	records := h.outbox.Records()
	if len(records) != 1 || records[0].EventType != domain.EventSettlementClosed {
		t.Fatalf("expected settlement_closed event, got %+v", records)
	}
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(records[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.PartitionKey != "contract-1" || envelope.SourceService != "deal-agents-test" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestSettleBrandSafetyFailureMovesNoFunds(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	h := newHarness(t, &scriptedOracle{audit: scenarioCAudit}, transfer)

	run, err := h.svc.Settle(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if run.Status != domain.SettlementStatusFailed || run.Error != domain.ErrorBrandSafety {
		t.Fatalf("expected brand safety failure, got %s (%s)", run.Status, run.Error)
	}
	if run.Breakdown != nil || transfer.calls() != 0 {
		t.Fatalf("expected no pricing and no transfer, got %+v and %d calls", run.Breakdown, transfer.calls())
	}
	if _, ok := h.ledger.IsSettled("contract-1"); ok {
		t.Fatal("failed run must not mark contract settled")
	}
	stored, err := h.svc.GetSettlement(context.Background(), "contract-1")
	if err != nil || stored.Status != domain.SettlementStatusFailed {
		t.Fatalf("expected failed run to be persisted, got %+v %v", stored, err)
	}
}

func TestSettleAuditOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		audit string
		total float64
	}{
		{name: "malformed audit uses fallback tier", audit: "the content looks fine to me", total: 600},
		{name: "missed deliverables halve base", audit: `{"overall_score":90,"tier_achieved":3,"deliverables_met":false,"brand_safety_score":95}`, total: 250},
		{name: "tier zero pays base only", audit: `{"overall_score":40,"tier_achieved":0,"deliverables_met":true,"brand_safety_score":80}`, total: 500},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, &scriptedOracle{audit: tc.audit}, successTransfer())
			run, err := h.svc.Settle(context.Background(), settlementInput())
			if err != nil {
				t.Fatalf("settle: %v", err)
			}
			if run.Status != domain.SettlementStatusCompleted || run.Breakdown.TotalPayment != tc.total {
				t.Fatalf("expected completed with %v, got %s with %+v", tc.total, run.Status, run.Breakdown)
			}
		})
	}
}

func TestSettlePreparationFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing sender", func(t *testing.T) {
		t.Parallel()
		transfer := successTransfer()
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer, withSender(""))
		run, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if run.Status != domain.SettlementStatusFailed || run.Error != domain.ErrorMissingSender {
			t.Fatalf("expected missing sender failure, got %s (%s)", run.Status, run.Error)
		}
		if transfer.calls() != 0 {
			t.Fatalf("expected no transfer, got %d", transfer.calls())
		}
	})

	t.Run("missing recipient", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, successTransfer())
		input := settlementInput()
		input.Terms.CreatorWalletAddress = ""
		run, err := h.svc.Settle(context.Background(), input)
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if run.Error != domain.ErrorMissingRecipient {
			t.Fatalf("expected missing recipient failure, got %q", run.Error)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, successTransfer())
		input := settlementInput()
		input.Terms.PaymentToken = "DOGE"
		run, err := h.svc.Settle(context.Background(), input)
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if run.Status != domain.SettlementStatusFailed || !strings.Contains(run.Error, "DOGE") {
			t.Fatalf("expected token failure, got %s (%s)", run.Status, run.Error)
		}
	})

	t.Run("transfer not configured", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, nil, withoutTransfer())
		run, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if run.Error != "transfer error: "+domain.ErrTransferNotConfigured.Error() {
			t.Fatalf("unexpected failure reason %q", run.Error)
		}
	})
}

func TestSettleTransferFailures(t *testing.T) {
	t.Parallel()

	t.Run("reverted receipt keeps hash", func(t *testing.T) {
		t.Parallel()
		transfer := &fakeTransfer{receipt: domain.TransferReceipt{TxHash: "0xdead", Status: domain.TransferStatusReverted}}
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
		run, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if run.Status != domain.SettlementStatusFailed || run.Error != domain.ErrorReverted {
			t.Fatalf("expected reverted failure, got %s (%s)", run.Status, run.Error)
		}
		if run.TransactionHash() != "0xdead" || run.TotalPaid() != 0 {
			t.Fatalf("expected hash kept and nothing paid, got %q %v", run.TransactionHash(), run.TotalPaid())
		}
		if _, ok := h.ledger.IsSettled("contract-1"); ok {
			t.Fatal("reverted run must not mark contract settled")
		}
	})

	t.Run("confirmation error keeps submitted hash", func(t *testing.T) {
		t.Parallel()
		transfer := &fakeTransfer{err: &domain.TransferError{TxHash: "0xbeef", Err: errors.New("wait mined: context deadline exceeded")}}
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
		run, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if !strings.HasPrefix(run.Error, "transfer error: ") || run.TransactionHash() != "0xbeef" {
			t.Fatalf("expected transfer error with hash, got %q %q", run.Error, run.TransactionHash())
		}
	})
}

func TestSettleAuditUnavailableFailsRun(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	h := newHarness(t, &scriptedOracle{auditErr: errors.New("dial tcp: timeout")}, transfer)
	run, err := h.svc.Settle(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if run.Status != domain.SettlementStatusFailed || !strings.HasPrefix(run.Error, "content audit failed: ") {
		t.Fatalf("expected audit failure, got %s (%s)", run.Status, run.Error)
	}
	if transfer.calls() != 0 {
		t.Fatalf("expected no transfer, got %d", transfer.calls())
	}
}

func TestSettleRefusesSettledContract(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	oracle := &scriptedOracle{audit: scenarioBAudit}
	h := newHarness(t, oracle, transfer)
	if _, err := h.svc.Settle(context.Background(), settlementInput()); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if _, err := h.svc.Settle(context.Background(), settlementInput()); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	if transfer.calls() != 1 || oracle.auditCalls != 1 {
		t.Fatalf("expected a single audit and transfer, got %d and %d", oracle.auditCalls, transfer.calls())
	}
}

func TestSettleAfterFailureMayRetry(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	oracle := &scriptedOracle{audit: scenarioCAudit}
	h := newHarness(t, oracle, transfer)
	if _, err := h.svc.Settle(context.Background(), settlementInput()); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	oracle.audit = scenarioBAudit
	run, err := h.svc.Settle(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("retry settle: %v", err)
	}
	if run.Status != domain.SettlementStatusCompleted || transfer.calls() != 1 {
		t.Fatalf("expected retry to complete with one transfer, got %s and %d", run.Status, transfer.calls())
	}
}

func TestSettleUnrecordedRunMovesNoFunds(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
	h.svc.ledger = unavailableLedger{h.ledger}

	run, err := h.svc.Settle(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if run.Status != domain.SettlementStatusFailed || !strings.HasPrefix(run.Error, "settlement could not be recorded before transfer: ") {
		t.Fatalf("expected failure before transfer, got %s (%s)", run.Status, run.Error)
	}
	if transfer.calls() != 0 {
		t.Fatalf("expected no transfer, got %d", transfer.calls())
	}
	if run.PersistError == "" {
		t.Fatal("expected persist error to be recorded")
	}
}

func TestSettleRefusesUnreconciledRun(t *testing.T) {
	t.Parallel()

	t.Run("unconfirmed transaction", func(t *testing.T) {
		t.Parallel()
		transfer := &fakeTransfer{err: &domain.TransferError{TxHash: "0xbeef", Err: errors.New("wait mined: context deadline exceeded")}}
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
		first, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("first settle: %v", err)
		}
		if first.Status != domain.SettlementStatusFailed {
			t.Fatalf("expected failed run, got %s", first.Status)
		}
		transfer.err = nil
		transfer.receipt = successTransfer().receipt
		if _, err := h.svc.Settle(context.Background(), settlementInput()); !errors.Is(err, domain.ErrNeedsReconciliation) {
			t.Fatalf("expected needs reconciliation, got %v", err)
		}
		if transfer.calls() != 1 {
			t.Fatalf("expected a single transfer, got %d", transfer.calls())
		}
	})

	t.Run("closing write lost", func(t *testing.T) {
		t.Parallel()
		transfer := successTransfer()
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
		h.svc.ledger = &closeFailingLedger{Ledger: h.ledger}

		first, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("first settle: %v", err)
		}
		if first.Status != domain.SettlementStatusCompleted || first.PersistError == "" {
			t.Fatalf("expected completed run with persist error, got %s %q", first.Status, first.PersistError)
		}
		stored, err := h.ledger.GetSettlement(context.Background(), "contract-1")
		if err != nil {
			t.Fatalf("get settlement: %v", err)
		}
		if stored.Status != domain.SettlementStatusProcessing {
			t.Fatalf("expected processing record, got %s", stored.Status)
		}
		if _, err := h.svc.Settle(context.Background(), settlementInput()); !errors.Is(err, domain.ErrNeedsReconciliation) {
			t.Fatalf("expected needs reconciliation, got %v", err)
		}
		if transfer.calls() != 1 {
			t.Fatalf("expected a single transfer, got %d", transfer.calls())
		}
	})

	t.Run("reverted transaction may retry", func(t *testing.T) {
		t.Parallel()
		transfer := &fakeTransfer{receipt: domain.TransferReceipt{TxHash: "0xdead", Status: domain.TransferStatusReverted}}
		h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
		if _, err := h.svc.Settle(context.Background(), settlementInput()); err != nil {
			t.Fatalf("first settle: %v", err)
		}
		transfer.receipt = successTransfer().receipt
		run, err := h.svc.Settle(context.Background(), settlementInput())
		if err != nil {
			t.Fatalf("retry settle: %v", err)
		}
		if run.Status != domain.SettlementStatusCompleted || transfer.calls() != 2 {
			t.Fatalf("expected retry to complete, got %s after %d transfers", run.Status, transfer.calls())
		}
	})
}

func TestSettleValidatesInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, successTransfer())
	input := settlementInput()
	input.Submission.ContentURL = " "
	if _, err := h.svc.Settle(context.Background(), input); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAuditContentDoesNotPersist(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
	outcome, err := h.svc.AuditContent(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("audit content: %v", err)
	}
	if outcome.RecommendedPayment() != 700 || outcome.Audit.TierAchieved != 2 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if transfer.calls() != 0 || h.ledger.LogCount() != 0 || len(h.outbox.Records()) != 0 {
		t.Fatal("audit must not transfer or persist")
	}
	if _, err := h.svc.GetSettlement(context.Background(), "contract-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no stored settlement, got %v", err)
	}

	h.oracle.audit = scenarioCAudit
	outcome, err = h.svc.AuditContent(context.Background(), settlementInput())
	if err != nil {
		t.Fatalf("audit content: %v", err)
	}
	if outcome.Breakdown != nil || outcome.RecommendedPayment() != 0 {
		t.Fatalf("expected no breakdown for unsafe content, got %+v", outcome.Breakdown)
	}
}

func TestHandleContentSubmitted(t *testing.T) {
	t.Parallel()

	transfer := successTransfer()
	h := newHarness(t, &scriptedOracle{audit: scenarioBAudit}, transfer)
	input := settlementInput()
	data, _ := json.Marshal(contracts.ContentSubmittedPayload{
		ContractID:    input.ContractID,
		ContractTerms: input.Terms,
		Submission:    input.Submission,
	})
	payload, _ := json.Marshal(contracts.EventEnvelope{
		EventID:      "evt-1",
		EventType:    domain.EventContentSubmitted,
		PartitionKey: input.ContractID,
		Data:         data,
	})

	for i := 0; i < 2; i++ {
		if err := h.svc.HandleContentSubmitted(context.Background(), payload); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if transfer.calls() != 1 {
		t.Fatalf("expected duplicate delivery to be skipped, got %d transfers", transfer.calls())
	}
	if err := h.svc.HandleContentSubmitted(context.Background(), []byte("{")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for broken payload, got %v", err)
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	ready := newHarness(t, &scriptedOracle{}, successTransfer()).svc.Readiness()
	if !ready.Healthy() {
		t.Fatalf("expected healthy readiness, got %+v", ready)
	}
	degraded := newHarness(t, &scriptedOracle{}, nil, withoutTransfer()).svc.Readiness()
	if degraded.Settlement != ReadinessDegraded || degraded.Negotiation != ReadinessReady {
		t.Fatalf("expected degraded settlement only, got %+v", degraded)
	}
}

func TestGraphsDescribePhases(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &scriptedOracle{}, nil)
	if g := h.svc.NegotiationGraph(); g.Entry != string(domain.PhaseAnalyzing) || len(g.Nodes) != 5 {
		t.Fatalf("unexpected negotiation graph: %+v", g)
	}
	if g := h.svc.SettlementGraph(); g.Entry != string(domain.PhasePendingAudit) || len(g.Nodes) != 5 {
		t.Fatalf("unexpected settlement graph: %+v", g)
	}
}
