package postgres

import (
	"time"

	"github.com/google/uuid"
)

type negotiationRunModel struct {
	ContractID   string     `gorm:"column:contract_id;primaryKey"`
	RunID        string     `gorm:"column:run_id"`
	CreatorID    string     `gorm:"column:creator_id"`
	AdvertiserID string     `gorm:"column:advertiser_id"`
	CampaignID   string     `gorm:"column:campaign_id"`
	Status       string     `gorm:"column:status"`
	RoundNumber  int        `gorm:"column:round_number"`
	MaxRounds    int        `gorm:"column:max_rounds"`
	Snapshot     string     `gorm:"column:snapshot;type:jsonb"`
	StartedAt    time.Time  `gorm:"column:started_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	ClosedAt     *time.Time `gorm:"column:closed_at"`
}

func (negotiationRunModel) TableName() string { return "negotiation_runs" }

type settlementModel struct {
	ContractID      string     `gorm:"column:contract_id;primaryKey"`
	SettlementID    string     `gorm:"column:settlement_id"`
	Status          string     `gorm:"column:status"`
	TotalPaid       float64    `gorm:"column:total_paid"`
	TransactionHash string     `gorm:"column:transaction_hash"`
	Error           string     `gorm:"column:error"`
	Snapshot        string     `gorm:"column:snapshot;type:jsonb"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
}

func (settlementModel) TableName() string { return "settlements" }

type settledContractModel struct {
	ContractID   string    `gorm:"column:contract_id;primaryKey"`
	SettlementID string    `gorm:"column:settlement_id"`
	SettledAt    time.Time `gorm:"column:settled_at"`
}

func (settledContractModel) TableName() string { return "settled_contracts" }

type agentLogModel struct {
	LogID        string    `gorm:"column:log_id;primaryKey"`
	AgentType    string    `gorm:"column:agent_type"`
	Action       string    `gorm:"column:action"`
	ContractID   string    `gorm:"column:contract_id"`
	CreatorID    string    `gorm:"column:creator_id"`
	AdvertiserID string    `gorm:"column:advertiser_id"`
	CampaignID   string    `gorm:"column:campaign_id"`
	Details      string    `gorm:"column:details;type:jsonb"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (agentLogModel) TableName() string { return "agent_logs" }

type outboxModel struct {
	OutboxID         uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType        string     `gorm:"column:event_type"`
	PartitionKey     string     `gorm:"column:partition_key"`
	PartitionKeyPath string     `gorm:"column:partition_key_path"`
	Payload          string     `gorm:"column:payload;type:jsonb"`
	SchemaVersion    string     `gorm:"column:schema_version"`
	TraceID          string     `gorm:"column:trace_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	FirstSeenAt      time.Time  `gorm:"column:first_seen_at"`
	PublishedAt      *time.Time `gorm:"column:published_at"`
	RetryCount       int        `gorm:"column:retry_count"`
	LastError        *string    `gorm:"column:last_error"`
	LastErrorAt      *time.Time `gorm:"column:last_error_at"`
}

func (outboxModel) TableName() string { return "deal_outbox" }
