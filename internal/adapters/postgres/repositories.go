package postgres

import (
	"github.com/viralforge/deal-agents/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Ledger ports.Ledger
	Outbox ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Ledger: &ledgerRepository{db: db},
		Outbox: &outboxRepository{db: db},
	}
}
