package application

import (
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
	"github.com/viralforge/deal-agents/internal/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/viralforge/deal-agents/internal/application"

const lockTTLMargin = time.Minute

type Service struct {
	cfg      Config
	oracle   ports.DecisionOracle
	ledger   ports.Ledger
	transfer ports.TransferExecutor
	locker   ports.RunLocker
	outbox   ports.OutboxRepository
	tracer   trace.Tracer
	nowFn    func() time.Time
}

type Dependencies struct {
	Config   Config
	Oracle   ports.DecisionOracle
	Ledger   ports.Ledger
	Transfer ports.TransferExecutor
	Locker   ports.RunLocker
	Outbox   ports.OutboxRepository
	Clock    func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "deal-agents"
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = domain.DefaultMaxRounds
	}
	if cfg.Network == "" {
		cfg.Network = domain.DefaultNetwork
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 60 * time.Second
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 120 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.ActivityLimit <= 0 {
		cfg.ActivityLimit = 20
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:      cfg,
		oracle:   deps.Oracle,
		ledger:   deps.Ledger,
		transfer: deps.Transfer,
		locker:   deps.Locker,
		outbox:   deps.Outbox,
		tracer:   otel.Tracer(tracerName),
		nowFn:    nowFn,
	}
}
