package domain

import (
	"fmt"
	"strings"
	"time"
)

type NegotiationStatus string

const (
	NegotiationStatusNegotiating NegotiationStatus = "negotiating"
	NegotiationStatusAccepted    NegotiationStatus = "accepted"
	NegotiationStatusRejected    NegotiationStatus = "rejected"
	NegotiationStatusExpired     NegotiationStatus = "expired"
)

const (
	DefaultMaxRounds = 5
	MaxRoundsLimit   = 20
	// ContextWindow is how many trailing log entries a decision-maker sees.
	ContextWindow = 6
)

type CreatorProfile struct {
	Name           string  `json:"name,omitempty"`
	Followers      int64   `json:"followers,omitempty"`
	EngagementRate float64 `json:"engagement_rate,omitempty"`
	Niche          string  `json:"niche,omitempty"`
	PastDeals      int     `json:"past_deals,omitempty"`
	MinRate        float64 `json:"min_rate,omitempty"`
	FitScore       float64 `json:"fit_score,omitempty"`
}

type AdvertiserRequirements struct {
	CampaignName     string  `json:"campaign_name,omitempty"`
	BudgetPerCreator float64 `json:"budget_per_creator,omitempty"`
	Deliverables     string  `json:"deliverables,omitempty"`
	Niche            string  `json:"niche,omitempty"`
	Deadline         string  `json:"deadline,omitempty"`
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Terms     *TermSet  `json:"terms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type NegotiationRun struct {
	RunID        string            `json:"run_id"`
	ContractID   string            `json:"contract_id"`
	CreatorID    string            `json:"creator_id,omitempty"`
	AdvertiserID string            `json:"advertiser_id,omitempty"`
	CampaignID   string            `json:"campaign_id,omitempty"`
	Status       NegotiationStatus `json:"status"`

	CurrentOffer   TermSet   `json:"current_offer"`
	PendingCounter *TermSet  `json:"counter_offer,omitempty"`
	LastDecision   Decision  `json:"last_decision,omitempty"`
	Messages       []Message `json:"messages"`
	RoundNumber    int       `json:"round_number"`
	MaxRounds      int       `json:"max_rounds"`

	CreatorProfile         CreatorProfile         `json:"creator_profile"`
	AdvertiserRequirements AdvertiserRequirements `json:"advertiser_requirements"`
	Market                 MarketEstimate         `json:"market"`

	FinalTerms *TermSet `json:"final_terms,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	// PersistError is set when the closing write could not be confirmed.
	PersistError string `json:"persist_error,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type NewNegotiationInput struct {
	RunID                  string
	ContractID             string
	CreatorID              string
	AdvertiserID           string
	CampaignID             string
	InitialOffer           TermSet
	CreatorProfile         CreatorProfile
	AdvertiserRequirements AdvertiserRequirements
	MaxRounds              int
}

func NewNegotiationRun(input NewNegotiationInput, now time.Time) (NegotiationRun, error) {
	contractID := strings.TrimSpace(input.ContractID)
	if contractID == "" {
		return NegotiationRun{}, fmt.Errorf("%w: contract_id is required", ErrInvalidInput)
	}
	offer := input.InitialOffer.Normalize()
	if err := offer.Validate(); err != nil {
		return NegotiationRun{}, err
	}
	maxRounds := input.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if maxRounds > MaxRoundsLimit {
		return NegotiationRun{}, fmt.Errorf("%w: max_rounds must be at most %d", ErrInvalidInput, MaxRoundsLimit)
	}
	return NegotiationRun{
		RunID:                  input.RunID,
		ContractID:             contractID,
		CreatorID:              strings.TrimSpace(input.CreatorID),
		AdvertiserID:           strings.TrimSpace(input.AdvertiserID),
		CampaignID:             strings.TrimSpace(input.CampaignID),
		Status:                 NegotiationStatusNegotiating,
		CurrentOffer:           offer,
		Messages:               []Message{},
		MaxRounds:              maxRounds,
		CreatorProfile:         input.CreatorProfile,
		AdvertiserRequirements: input.AdvertiserRequirements,
		StartedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// ValidateSnapshot checks a run handed back by a caller for resumption.
func (r NegotiationRun) ValidateSnapshot() error {
	if strings.TrimSpace(r.ContractID) == "" {
		return fmt.Errorf("%w: contract_id is required", ErrInvalidInput)
	}
	switch r.Status {
	case NegotiationStatusNegotiating, NegotiationStatusAccepted, NegotiationStatusRejected, NegotiationStatusExpired:
	default:
		return fmt.Errorf("%w: unknown negotiation status %q", ErrInvalidInput, r.Status)
	}
	if r.RoundNumber < 0 {
		return fmt.Errorf("%w: round_number must be non-negative", ErrInvalidInput)
	}
	if r.MaxRounds > MaxRoundsLimit {
		return fmt.Errorf("%w: max_rounds must be at most %d", ErrInvalidInput, MaxRoundsLimit)
	}
	return r.CurrentOffer.Normalize().Validate()
}

func (r NegotiationRun) IsTerminal() bool {
	return r.Status != NegotiationStatusNegotiating
}

// Clone returns a copy that shares no slices or pointers with r.
func (r NegotiationRun) Clone() NegotiationRun {
	out := r
	out.CurrentOffer = r.CurrentOffer.Clone()
	out.PendingCounter = cloneTerms(r.PendingCounter)
	out.FinalTerms = cloneTerms(r.FinalTerms)
	out.Messages = make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		m.Terms = cloneTerms(m.Terms)
		out.Messages[i] = m
	}
	if r.ClosedAt != nil {
		closed := *r.ClosedAt
		out.ClosedAt = &closed
	}
	return out
}

// RecentMessages returns at most n trailing log entries.
func (r NegotiationRun) RecentMessages(n int) []Message {
	if n <= 0 || len(r.Messages) == 0 {
		return []Message{}
	}
	start := len(r.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, 0, len(r.Messages)-start)
	for _, m := range r.Messages[start:] {
		m.Terms = cloneTerms(m.Terms)
		out = append(out, m)
	}
	return out
}

// OfferUnderReview is what the advertiser answers to: the creator's pending
// counter when there is one, otherwise the current offer.
func (r NegotiationRun) OfferUnderReview() TermSet {
	if r.PendingCounter != nil {
		return r.PendingCounter.Clone()
	}
	return r.CurrentOffer.Clone()
}

func (r NegotiationRun) WithMarketEstimate(now time.Time) NegotiationRun {
	if r.IsTerminal() {
		return r
	}
	out := r.Clone()
	followers := float64(r.CreatorProfile.Followers)
	if followers <= 0 {
		followers = DefaultFollowers
	}
	engagement := r.CreatorProfile.EngagementRate
	if engagement <= 0 {
		engagement = DefaultEngagementRate
	}
	out.Market = EstimateMarketRate(followers, engagement, r.CurrentOffer.BasePayment)
	out.UpdatedAt = now
	return out
}

// ApplyCreatorDecision records the creator's answer to the current offer.
// Every decision, accept included, counts as one round.
func (r NegotiationRun) ApplyCreatorDecision(outcome DecisionOutcome, now time.Time) NegotiationRun {
	if r.IsTerminal() {
		return r
	}
	out := r.Clone()
	proposal := out.CurrentOffer.Clone()
	if outcome.Decision == DecisionCounter && outcome.CounterOffer != nil {
		proposal = outcome.CounterOffer.Clone()
	}
	out.Messages = append(out.Messages, Message{
		Role:      RoleCreator,
		Content:   outcome.Reasoning,
		Terms:     &proposal,
		Timestamp: now,
	})
	out.RoundNumber++
	out.LastDecision = outcome.Decision
	out.UpdatedAt = now

	switch outcome.Decision {
	case DecisionAccept:
		final := out.CurrentOffer.Clone()
		out.Status = NegotiationStatusAccepted
		out.FinalTerms = &final
		out.Reasoning = outcome.Reasoning
	case DecisionReject:
		out.Status = NegotiationStatusRejected
		out.Reasoning = outcome.Reasoning
	case DecisionCounter:
		out.PendingCounter = &proposal
	}
	return out
}

// ApplyAdvertiserDecision records the advertiser's answer to the creator's
// pending counter. A counter here takes back ownership of the current offer.
func (r NegotiationRun) ApplyAdvertiserDecision(outcome DecisionOutcome, now time.Time) NegotiationRun {
	if r.IsTerminal() {
		return r
	}
	out := r.Clone()
	reviewed := out.OfferUnderReview()
	proposal := reviewed.Clone()
	if outcome.Decision == DecisionCounter && outcome.CounterOffer != nil {
		proposal = outcome.CounterOffer.Clone()
	}
	out.Messages = append(out.Messages, Message{
		Role:      RoleAdvertiser,
		Content:   outcome.Reasoning,
		Terms:     &proposal,
		Timestamp: now,
	})
	out.RoundNumber++
	out.LastDecision = outcome.Decision
	out.UpdatedAt = now

	switch outcome.Decision {
	case DecisionAccept:
		out.Status = NegotiationStatusAccepted
		out.FinalTerms = &reviewed
		out.Reasoning = outcome.Reasoning
	case DecisionReject:
		out.Status = NegotiationStatusRejected
		out.Reasoning = outcome.Reasoning
	case DecisionCounter:
		out.CurrentOffer = proposal
		out.PendingCounter = nil
	}
	return out
}

func ExpiryReasoning(maxRounds int) string {
	return fmt.Sprintf("negotiation expired after %d rounds without agreement", maxRounds)
}

// CheckTermination expires a still-open run whose round counter reached the
// limit and clears the per-round decision flag.
func (r NegotiationRun) CheckTermination(now time.Time) NegotiationRun {
	if r.IsTerminal() {
		return r
	}
	out := r.Clone()
	out.LastDecision = ""
	out.UpdatedAt = now
	if out.RoundNumber >= out.MaxRounds {
		reason := ExpiryReasoning(out.MaxRounds)
		out.Status = NegotiationStatusExpired
		out.Reasoning = reason
		out.Messages = append(out.Messages, Message{Role: RoleSystem, Content: reason, Timestamp: now})
	}
	return out
}

// Close stamps the closing time once. Terminal fields are left untouched.
func (r NegotiationRun) Close(now time.Time) NegotiationRun {
	if r.ClosedAt != nil {
		return r
	}
	out := r.Clone()
	out.ClosedAt = &now
	return out
}
