package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type SettlementStatus string

const (
	SettlementStatusPendingAudit SettlementStatus = "pending_audit"
	SettlementStatusCalculating  SettlementStatus = "calculating"
	SettlementStatusReadyToPay   SettlementStatus = "ready_to_pay"
	SettlementStatusProcessing   SettlementStatus = "processing"
	SettlementStatusCompleted    SettlementStatus = "completed"
	SettlementStatusFailed       SettlementStatus = "failed"
)

const (
	ErrorBrandSafety      = "content failed brand safety check"
	ErrorMissingRecipient = "creator wallet address not found in contract"
	ErrorMissingSender    = "sender wallet address not configured"
	ErrorReverted         = "transaction reverted"
)

type ContractTerms struct {
	BasePayment          float64     `json:"base_payment"`
	BonusTiers           []BonusTier `json:"bonus_tiers"`
	Deliverables         string      `json:"deliverables,omitempty"`
	BrandGuidelines      string      `json:"brand_guidelines,omitempty"`
	CreatorWalletAddress string      `json:"creator_wallet_address,omitempty"`
	PaymentToken         string      `json:"payment_token,omitempty"`
}

func (t ContractTerms) Clone() ContractTerms {
	out := t
	if t.BonusTiers != nil {
		out.BonusTiers = append([]BonusTier(nil), t.BonusTiers...)
	}
	return out
}

type ContentSubmission struct {
	ContentURL  string    `json:"content_url"`
	Caption     string    `json:"caption,omitempty"`
	Platform    string    `json:"platform"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type PaymentInstruction struct {
	Amount          float64 `json:"amount"`
	AmountBaseUnits string  `json:"amount_base_units"`
	Token           string  `json:"token"`
	TokenAddress    string  `json:"token_address"`
	Decimals        int     `json:"decimals"`
	Recipient       string  `json:"recipient"`
	Sender          string  `json:"sender"`
	Network         string  `json:"network"`
}

type TransferStatus string

const (
	TransferStatusSuccess  TransferStatus = "success"
	TransferStatusReverted TransferStatus = "reverted"
)

type TransferReceipt struct {
	TxHash      string         `json:"transaction_hash"`
	BlockNumber uint64         `json:"block_number"`
	GasUsed     uint64         `json:"gas_used"`
	Status      TransferStatus `json:"status"`
}

type SettlementRun struct {
	SettlementID string            `json:"settlement_id"`
	ContractID   string            `json:"contract_id"`
	Terms        ContractTerms     `json:"contract_terms"`
	Submission   ContentSubmission `json:"submission"`

	Audit       *AuditResult        `json:"audit_result,omitempty"`
	Breakdown   *PaymentBreakdown   `json:"payment_breakdown,omitempty"`
	Instruction *PaymentInstruction `json:"payment_instruction,omitempty"`
	Transfer    *TransferReceipt    `json:"transfer,omitempty"`

	Status       SettlementStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	PersistError string           `json:"persist_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type NewSettlementInput struct {
	SettlementID string
	ContractID   string
	Terms        ContractTerms
	Submission   ContentSubmission
}

func NewSettlementRun(input NewSettlementInput, now time.Time) (SettlementRun, error) {
	contractID := strings.TrimSpace(input.ContractID)
	if contractID == "" {
		return SettlementRun{}, fmt.Errorf("%w: contract_id is required", ErrInvalidInput)
	}
	terms := input.Terms.Clone()
	if terms.BasePayment < 0 {
		return SettlementRun{}, fmt.Errorf("%w: base_payment must be non-negative", ErrInvalidInput)
	}
	for _, tier := range terms.BonusTiers {
		if tier.Tier < 0 || tier.Bonus < 0 {
			return SettlementRun{}, fmt.Errorf("%w: bonus tiers must be non-negative", ErrInvalidInput)
		}
	}
	terms.CreatorWalletAddress = strings.TrimSpace(terms.CreatorWalletAddress)
	if strings.TrimSpace(terms.PaymentToken) == "" {
		terms.PaymentToken = DefaultPaymentToken
	}
	if terms.BonusTiers == nil {
		terms.BonusTiers = []BonusTier{}
	}

	submission := input.Submission
	submission.ContentURL = strings.TrimSpace(submission.ContentURL)
	if submission.ContentURL == "" {
		return SettlementRun{}, fmt.Errorf("%w: content_url is required", ErrInvalidInput)
	}
	if strings.TrimSpace(submission.Platform) == "" {
		submission.Platform = DefaultPlatform
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}

	return SettlementRun{
		SettlementID: input.SettlementID,
		ContractID:   contractID,
		Terms:        terms,
		Submission:   submission,
		Status:       SettlementStatusPendingAudit,
		CreatedAt:    now,
	}, nil
}

func (r SettlementRun) IsTerminal() bool {
	return r.Status == SettlementStatusCompleted || r.Status == SettlementStatusFailed
}

func (r SettlementRun) Clone() SettlementRun {
	out := r
	out.Terms = r.Terms.Clone()
	if r.Audit != nil {
		audit := r.Audit.Clone()
		out.Audit = &audit
	}
	if r.Breakdown != nil {
		b := *r.Breakdown
		out.Breakdown = &b
	}
	if r.Instruction != nil {
		i := *r.Instruction
		out.Instruction = &i
	}
	if r.Transfer != nil {
		t := *r.Transfer
		out.Transfer = &t
	}
	if r.CompletedAt != nil {
		c := *r.CompletedAt
		out.CompletedAt = &c
	}
	return out
}

// TotalPaid is the amount moved on-chain; zero unless the run completed.
func (r SettlementRun) TotalPaid() float64 {
	if r.Status != SettlementStatusCompleted || r.Breakdown == nil {
		return 0
	}
	return r.Breakdown.TotalPayment
}

// NeedsReconciliation reports whether funds may have moved without a
// recorded outcome: a processing record left behind, or a failed run holding
// a hash that never got a definitive receipt. A reverted receipt is
// definitive and allows a retry.
func (r SettlementRun) NeedsReconciliation() bool {
	switch r.Status {
	case SettlementStatusProcessing:
		return true
	case SettlementStatusFailed:
		return r.Transfer != nil && r.Transfer.TxHash != "" && r.Transfer.Status != TransferStatusReverted
	default:
		return false
	}
}

func (r SettlementRun) TransactionHash() string {
	if r.Transfer == nil {
		return ""
	}
	return r.Transfer.TxHash
}

// WithAudit records the audit and applies the brand-safety gate.
func (r SettlementRun) WithAudit(audit AuditResult, now time.Time) SettlementRun {
	if r.IsTerminal() || r.Status != SettlementStatusPendingAudit {
		return r
	}
	out := r.Clone()
	a := audit.Clone()
	out.Audit = &a
	if !a.BrandSafe {
		return out.Fail(ErrorBrandSafety, now)
	}
	out.Status = SettlementStatusCalculating
	return out
}

func (r SettlementRun) WithPayment() SettlementRun {
	if r.Status != SettlementStatusCalculating || r.Audit == nil {
		return r
	}
	out := r.Clone()
	breakdown := CalculatePayment(out.Terms, *out.Audit)
	out.Breakdown = &breakdown
	out.Status = SettlementStatusReadyToPay
	return out
}

// PrepareInstruction resolves the transfer instruction for a priced run.
// The returned error text is the run's failure reason.
func (r SettlementRun) PrepareInstruction(sender, network string) (PaymentInstruction, error) {
	if r.Breakdown == nil {
		return PaymentInstruction{}, errors.New("payment not calculated")
	}
	if r.Terms.CreatorWalletAddress == "" {
		return PaymentInstruction{}, errors.New(ErrorMissingRecipient)
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return PaymentInstruction{}, errors.New(ErrorMissingSender)
	}
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = DefaultNetwork
	}
	token, err := ResolveToken(r.Terms.PaymentToken, network)
	if err != nil {
		return PaymentInstruction{}, err
	}
	return PaymentInstruction{
		Amount:          r.Breakdown.TotalPayment,
		AmountBaseUnits: ToBaseUnits(r.Breakdown.TotalPayment, token.Decimals),
		Token:           token.Symbol,
		TokenAddress:    token.Address,
		Decimals:        token.Decimals,
		Recipient:       r.Terms.CreatorWalletAddress,
		Sender:          sender,
		Network:         network,
	}, nil
}

func (r SettlementRun) WithInstruction(instruction PaymentInstruction) SettlementRun {
	if r.Status != SettlementStatusReadyToPay {
		return r
	}
	out := r.Clone()
	out.Instruction = &instruction
	out.Status = SettlementStatusProcessing
	return out
}

// WithTransfer records a confirmed transfer. A reverted receipt fails the
// run but keeps the hash for reconciliation.
func (r SettlementRun) WithTransfer(receipt TransferReceipt, now time.Time) SettlementRun {
	if r.Status != SettlementStatusProcessing {
		return r
	}
	out := r.Clone()
	out.Transfer = &receipt
	switch receipt.Status {
	case TransferStatusSuccess:
		out.Status = SettlementStatusCompleted
		out.CompletedAt = &now
		return out
	case TransferStatusReverted:
		return out.Fail(ErrorReverted, now)
	default:
		return out.Fail(fmt.Sprintf("transfer error: unknown receipt status %q", receipt.Status), now)
	}
}

// WithTransferError fails the run after an executor error, keeping any
// hash that was submitted before the failure.
func (r SettlementRun) WithTransferError(err error, now time.Time) SettlementRun {
	if r.Status != SettlementStatusProcessing {
		return r
	}
	out := r.Clone()
	var transferErr *TransferError
	if errors.As(err, &transferErr) && transferErr.TxHash != "" {
		out.Transfer = &TransferReceipt{TxHash: transferErr.TxHash}
	}
	return out.Fail("transfer error: "+err.Error(), now)
}

func (r SettlementRun) Fail(reason string, now time.Time) SettlementRun {
	if r.IsTerminal() {
		return r
	}
	out := r.Clone()
	out.Status = SettlementStatusFailed
	out.Error = reason
	out.CompletedAt = &now
	return out
}
