package domain

import (
	"fmt"
	"strings"
)

type UsageRights string

const (
	UsageRightsStandard  UsageRights = "standard"
	UsageRightsExtended  UsageRights = "extended"
	UsageRightsPerpetual UsageRights = "perpetual"
)

func (u UsageRights) Valid() bool {
	switch u {
	case UsageRightsStandard, UsageRightsExtended, UsageRightsPerpetual:
		return true
	default:
		return false
	}
}

type BonusTier struct {
	Tier  int     `json:"tier"`
	Bonus float64 `json:"bonus"`
}

// TermSet is the negotiable part of a contract. Treat it as a value: every
// counter-offer produces a new TermSet and nothing mutates one in place.
type TermSet struct {
	BasePayment  float64     `json:"base_payment"`
	Deliverables string      `json:"deliverables"`
	DeadlineDays int         `json:"deadline_days"`
	UsageRights  UsageRights `json:"usage_rights"`
	Exclusivity  bool        `json:"exclusivity"`
	BonusTiers   []BonusTier `json:"bonus_tiers"`
}

func (t TermSet) Clone() TermSet {
	out := t
	if t.BonusTiers != nil {
		out.BonusTiers = append([]BonusTier(nil), t.BonusTiers...)
	}
	return out
}

// Normalize fills defaults the original offer format allowed to be omitted.
func (t TermSet) Normalize() TermSet {
	out := t.Clone()
	out.Deliverables = strings.TrimSpace(out.Deliverables)
	out.UsageRights = UsageRights(strings.ToLower(strings.TrimSpace(string(out.UsageRights))))
	if out.UsageRights == "" {
		out.UsageRights = UsageRightsStandard
	}
	if out.BonusTiers == nil {
		out.BonusTiers = []BonusTier{}
	}
	return out
}

func (t TermSet) Validate() error {
	if t.BasePayment < 0 {
		return fmt.Errorf("%w: base_payment must be non-negative", ErrInvalidInput)
	}
	if t.DeadlineDays <= 0 {
		return fmt.Errorf("%w: deadline_days must be positive", ErrInvalidInput)
	}
	if !t.UsageRights.Valid() {
		return fmt.Errorf("%w: unknown usage_rights %q", ErrInvalidInput, t.UsageRights)
	}
	for _, tier := range t.BonusTiers {
		if tier.Tier < 0 || tier.Bonus < 0 {
			return fmt.Errorf("%w: bonus tiers must be non-negative", ErrInvalidInput)
		}
	}
	return nil
}

func cloneTerms(t *TermSet) *TermSet {
	if t == nil {
		return nil
	}
	out := t.Clone()
	return &out
}
