package application

import (
	"time"

	"github.com/viralforge/deal-agents/internal/domain"
)

type Config struct {
	ServiceName     string
	MaxRounds       int
	SenderAddress   string
	Network         string
	OracleTimeout   time.Duration
	TransferTimeout time.Duration
	LockTTL         time.Duration
	ActivityLimit   int
}

type StartNegotiationInput struct {
	ContractID             string
	CreatorID              string
	AdvertiserID           string
	CampaignID             string
	InitialOffer           domain.TermSet
	CreatorProfile         domain.CreatorProfile
	AdvertiserRequirements domain.AdvertiserRequirements
	MaxRounds              int
}

type SettlementInput struct {
	ContractID string
	Terms      domain.ContractTerms
	Submission domain.ContentSubmission
}

// AuditOutcome is the result of an audit without a transfer. Breakdown is
// nil when the content failed the brand-safety gate.
type AuditOutcome struct {
	ContractID string
	Audit      domain.AuditResult
	Breakdown  *domain.PaymentBreakdown
}

func (o AuditOutcome) RecommendedPayment() float64 {
	if o.Breakdown == nil {
		return 0
	}
	return o.Breakdown.TotalPayment
}

const (
	ReadinessReady    = "ready"
	ReadinessDegraded = "degraded"
)

type Readiness struct {
	Negotiation string
	Settlement  string
}

func (r Readiness) Healthy() bool {
	return r.Negotiation == ReadinessReady && r.Settlement == ReadinessReady
}
