package contracts

import (
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
)

type StartNegotiationRequest struct {
	ContractID             string                        `json:"contract_id"`
	CreatorID              string                        `json:"creator_id"`
	AdvertiserID           string                        `json:"advertiser_id"`
	CampaignID             string                        `json:"campaign_id"`
	InitialOffer           domain.TermSet                `json:"initial_offer"`
	CreatorProfile         domain.CreatorProfile         `json:"creator_profile"`
	AdvertiserRequirements domain.AdvertiserRequirements `json:"advertiser_requirements"`
	MaxRounds              int                           `json:"max_rounds"`
}

type ResumeNegotiationRequest struct {
	State domain.NegotiationRun `json:"state"`
}

type NegotiationResponse struct {
	RunID        string                 `json:"run_id"`
	ContractID   string                 `json:"contract_id"`
	CreatorID    string                 `json:"creator_id,omitempty"`
	AdvertiserID string                 `json:"advertiser_id,omitempty"`
	CampaignID   string                 `json:"campaign_id,omitempty"`
	Status       string                 `json:"status"`
	RoundNumber  int                    `json:"round_number"`
	MaxRounds    int                    `json:"max_rounds"`
	CurrentOffer domain.TermSet         `json:"current_offer"`
	FinalTerms   *domain.TermSet        `json:"final_terms,omitempty"`
	Reasoning    string                 `json:"reasoning,omitempty"`
	Market       domain.MarketEstimate  `json:"market"`
	Messages     []domain.Message       `json:"messages"`
	PersistError string                 `json:"persist_error,omitempty"`
	State        *domain.NegotiationRun `json:"state,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	ClosedAt     *time.Time             `json:"closed_at,omitempty"`
}

type SettlementRequest struct {
	ContractID    string                   `json:"contract_id"`
	ContractTerms domain.ContractTerms     `json:"contract_terms"`
	Submission    domain.ContentSubmission `json:"submission"`
}

type AuditResponse struct {
	ContractID         string                   `json:"contract_id"`
	AuditResult        domain.AuditResult       `json:"audit_result"`
	PaymentBreakdown   *domain.PaymentBreakdown `json:"payment_breakdown,omitempty"`
	RecommendedPayment float64                  `json:"recommended_payment"`
}

type SettlementResponse struct {
	SettlementID       string                     `json:"settlement_id"`
	ContractID         string                     `json:"contract_id"`
	Status             string                     `json:"status"`
	AuditResult        *domain.AuditResult        `json:"audit_result,omitempty"`
	PaymentBreakdown   *domain.PaymentBreakdown   `json:"payment_breakdown,omitempty"`
	PaymentInstruction *domain.PaymentInstruction `json:"payment_instruction,omitempty"`
	TransactionHash    string                     `json:"transaction_hash,omitempty"`
	Receipt            *domain.TransferReceipt    `json:"receipt,omitempty"`
	TotalPaid          float64                    `json:"total_paid"`
	Error              string                     `json:"error,omitempty"`
	PersistError       string                     `json:"persist_error,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	CompletedAt        *time.Time                 `json:"completed_at,omitempty"`
}

type ActivityResponse struct {
	EntityID string            `json:"entity_id"`
	Items    []domain.AgentLog `json:"items"`
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	Orchestrators map[string]string `json:"orchestrators"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}
