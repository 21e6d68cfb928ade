package domain

import "time"

const (
	EventNegotiationClosed = "deal.negotiation_closed"
	EventSettlementClosed  = "deal.settlement_closed"
	EventContentSubmitted  = "deal.content_submitted"
)

const (
	LogActionNegotiationUpdate = "NEGOTIATION_UPDATE"
	LogActionSettlement        = "X402_SETTLEMENT"
)

const (
	AgentTypeNegotiation = "negotiation"
	AgentTypePayment     = "payment"
)

// AgentLog is one activity-log entry. LogID is derived from the run, so
// writing the same closing entry twice keeps a single row.
type AgentLog struct {
	LogID        string         `json:"log_id"`
	AgentType    string         `json:"agent_type"`
	Action       string         `json:"action"`
	ContractID   string         `json:"contract_id"`
	CreatorID    string         `json:"creator_id,omitempty"`
	AdvertiserID string         `json:"advertiser_id,omitempty"`
	CampaignID   string         `json:"campaign_id,omitempty"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (l AgentLog) Matches(entityID string) bool {
	if entityID == "" {
		return false
	}
	return l.ContractID == entityID || l.CreatorID == entityID || l.AdvertiserID == entityID || l.CampaignID == entityID
}
