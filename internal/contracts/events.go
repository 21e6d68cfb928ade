package contracts

import (
	"encoding/json"
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type ContentSubmittedPayload struct {
	ContractID    string                   `json:"contract_id"`
	ContractTerms domain.ContractTerms     `json:"contract_terms"`
	Submission    domain.ContentSubmission `json:"submission"`
}

type NegotiationClosedPayload struct {
	ContractID   string          `json:"contract_id"`
	RunID        string          `json:"run_id"`
	CreatorID    string          `json:"creator_id,omitempty"`
	AdvertiserID string          `json:"advertiser_id,omitempty"`
	Status       string          `json:"status"`
	RoundNumber  int             `json:"round_number"`
	FinalTerms   *domain.TermSet `json:"final_terms,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
	ClosedAt     string          `json:"closed_at"`
}

type SettlementClosedPayload struct {
	ContractID      string  `json:"contract_id"`
	SettlementID    string  `json:"settlement_id"`
	Status          string  `json:"status"`
	TotalPaid       float64 `json:"total_paid"`
	TransactionHash string  `json:"transaction_hash,omitempty"`
	Error           string  `json:"error,omitempty"`
	ClosedAt        string  `json:"closed_at"`
}
