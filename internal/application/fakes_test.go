package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/deal-agents/internal/adapters/memory"
	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
)

const (
	acceptJSON  = `{"decision":"accept","reasoning":"works for us"}`
	rejectJSON  = `{"decision":"reject","reasoning":"not a fit"}`
	counterJSON = `{"decision":"counter","reasoning":"meet in the middle","counter_offer":{"base_payment":650,"deliverables":"1 reel","deadline_days":14,"usage_rights":"standard","exclusivity":false,"bonus_tiers":[]}}`

	scenarioBAudit = `{"overall_score":85,"tier_achieved":2,"deliverables_met":true,"brand_safety_score":90,"quality_score":82,"authenticity_score":88,"reasoning":"on brief"}`
	scenarioCAudit = `{"overall_score":85,"tier_achieved":2,"deliverables_met":true,"brand_safety_score":40,"reasoning":"unsafe language"}`

	testSender = "0x2222222222222222222222222222222222222222"
	testWallet = "0x1111111111111111111111111111111111111111"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// scriptedOracle replays decision responses in order and then keeps
// countering with the unchanged offer.
type scriptedOracle struct {
	mu         sync.Mutex
	decisions  []string
	decideErr  error
	audit      string
	auditErr   error
	requests   []ports.DecisionRequest
	auditCalls int
}

func (o *scriptedOracle) Decide(_ context.Context, req ports.DecisionRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.decideErr != nil {
		return "", o.decideErr
	}
	if len(o.decisions) == 0 {
		return `{"decision":"counter","reasoning":"holding"}`, nil
	}
	next := o.decisions[0]
	o.decisions = o.decisions[1:]
	return next, nil
}

func (o *scriptedOracle) Audit(_ context.Context, _ ports.AuditRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.auditCalls++
	if o.auditErr != nil {
		return "", o.auditErr
	}
	return o.audit, nil
}

func (o *scriptedOracle) decideCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

type fakeTransfer struct {
	mu           sync.Mutex
	receipt      domain.TransferReceipt
	err          error
	instructions []domain.PaymentInstruction
}

func (f *fakeTransfer) Transfer(_ context.Context, instruction domain.PaymentInstruction) (domain.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instructions = append(f.instructions, instruction)
	if f.err != nil {
		return domain.TransferReceipt{}, f.err
	}
	return f.receipt, nil
}

func (f *fakeTransfer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instructions)
}

func successTransfer() *fakeTransfer {
	return &fakeTransfer{receipt: domain.TransferReceipt{
		TxHash:      "0xfeed",
		BlockNumber: 1234,
		GasUsed:     51234,
		Status:      domain.TransferStatusSuccess,
	}}
}

type unavailableLedger struct {
	*memory.Ledger
}

func (unavailableLedger) UpsertNegotiation(context.Context, domain.NegotiationRun) error {
	return errors.New("connection refused")
}

func (unavailableLedger) UpsertSettlement(context.Context, domain.SettlementRun) error {
	return errors.New("connection refused")
}

// closeFailingLedger accepts the first settlement write and refuses the
// rest, so the stored record stays at processing.
type closeFailingLedger struct {
	*memory.Ledger
	mu     sync.Mutex
	writes int
}

func (l *closeFailingLedger) UpsertSettlement(ctx context.Context, run domain.SettlementRun) error {
	l.mu.Lock()
	l.writes++
	first := l.writes == 1
	l.mu.Unlock()
	if !first {
		return errors.New("connection reset by peer")
	}
	return l.Ledger.UpsertSettlement(ctx, run)
}

type harness struct {
	svc      *Service
	oracle   *scriptedOracle
	ledger   *memory.Ledger
	outbox   *memory.Outbox
	locker   *memory.RunLocker
	transfer *fakeTransfer
}

type harnessOption func(*Dependencies)

func withLedger(ledger ports.Ledger) harnessOption {
	return func(d *Dependencies) { d.Ledger = ledger }
}

func withoutTransfer() harnessOption {
	return func(d *Dependencies) { d.Transfer = nil }
}

func withSender(sender string) harnessOption {
	return func(d *Dependencies) { d.Config.SenderAddress = sender }
}

func newHarness(t *testing.T, oracle *scriptedOracle, transfer *fakeTransfer, opts ...harnessOption) harness {
	t.Helper()
	h := harness{
		oracle:   oracle,
		ledger:   memory.NewLedger(),
		outbox:   memory.NewOutbox(),
		locker:   memory.NewRunLocker(),
		transfer: transfer,
	}
	deps := Dependencies{
		Config: Config{
			ServiceName:   "deal-agents-test",
			SenderAddress: testSender,
			Network:       domain.NetworkBase,
		},
		Oracle:   oracle,
		Ledger:   h.ledger,
		Transfer: transfer,
		Locker:   h.locker,
		Outbox:   h.outbox,
		Clock:    func() time.Time { return fixedNow },
	}
	if transfer == nil {
		deps.Transfer = nil
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.svc = NewService(deps)
	return h
}

func testInitialOffer() domain.TermSet {
	return domain.TermSet{
		BasePayment:  500,
		Deliverables: "1 reel",
		DeadlineDays: 14,
		UsageRights:  domain.UsageRightsStandard,
		BonusTiers:   []domain.BonusTier{{Tier: 1, Bonus: 100}},
	}
}

func startInput(maxRounds int) StartNegotiationInput {
	return StartNegotiationInput{
		ContractID:     "contract-1",
		CreatorID:      "creator-1",
		AdvertiserID:   "advertiser-1",
		CampaignID:     "campaign-1",
		InitialOffer:   testInitialOffer(),
		CreatorProfile: domain.CreatorProfile{Name: "Ava", Followers: 50000, EngagementRate: 4.5},
		MaxRounds:      maxRounds,
	}
}

func settlementInput() SettlementInput {
	return SettlementInput{
		ContractID: "contract-1",
		Terms: domain.ContractTerms{
			BasePayment:          500,
			BonusTiers:           []domain.BonusTier{{Tier: 1, Bonus: 100}, {Tier: 2, Bonus: 200}, {Tier: 3, Bonus: 350}},
			Deliverables:         "1 reel",
			CreatorWalletAddress: testWallet,
			PaymentToken:         "USDC",
		},
		Submission: domain.ContentSubmission{ContentURL: "https://instagram.com/p/abc", Caption: "#ad"},
	}
}
