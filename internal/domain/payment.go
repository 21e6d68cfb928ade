package domain

import (
	"github.com/shopspring/decimal"
)

type PaymentBreakdown struct {
	BasePayment     float64 `json:"base_payment"`
	BonusPayment    float64 `json:"bonus_payment"`
	TierAchieved    int     `json:"tier_achieved"`
	TotalPayment    float64 `json:"total_payment"`
	DeliverablesMet bool    `json:"deliverables_met"`
}

// CalculatePayment is a pure function of the contract terms and the audit.
// The bonus is the largest one among tiers at or below the achieved tier;
// missed deliverables halve the base and forfeit any bonus.
func CalculatePayment(terms ContractTerms, audit AuditResult) PaymentBreakdown {
	base := decimal.NewFromFloat(terms.BasePayment)
	bonus := decimal.Zero
	if audit.TierAchieved > 0 {
		for _, tier := range terms.BonusTiers {
			if tier.Tier > audit.TierAchieved {
				continue
			}
			if amount := decimal.NewFromFloat(tier.Bonus); amount.GreaterThan(bonus) {
				bonus = amount
			}
		}
	}
	if !audit.DeliverablesMet {
		base = base.Mul(decimal.NewFromFloat(0.5))
		bonus = decimal.Zero
	}
	return PaymentBreakdown{
		BasePayment:     base.InexactFloat64(),
		BonusPayment:    bonus.InexactFloat64(),
		TierAchieved:    audit.TierAchieved,
		TotalPayment:    base.Add(bonus).InexactFloat64(),
		DeliverablesMet: audit.DeliverablesMet,
	}
}

// ToBaseUnits scales amount by the token precision, truncating anything
// finer than one base unit.
func ToBaseUnits(amount float64, decimals int) string {
	return decimal.NewFromFloat(amount).Shift(int32(decimals)).Truncate(0).BigInt().String()
}
