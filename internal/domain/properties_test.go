package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMarketRateMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("non-decreasing in followers for fixed engagement", prop.ForAll(
		func(a, b int64, engagement float64) bool {
			if a > b {
				a, b = b, a
			}
			low := EstimateMarketRate(float64(a), engagement, 100)
			high := EstimateMarketRate(float64(b), engagement, 100)
			return low.MarketRate <= high.MarketRate
		},
		gen.Int64Range(0, 50_000_000),
		gen.Int64Range(0, 50_000_000),
		gen.Float64Range(0, 25),
	))

	properties.Property("non-decreasing in engagement above baseline", prop.ForAll(
		func(followers int64, a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			low := EstimateMarketRate(float64(followers), a, 100)
			high := EstimateMarketRate(float64(followers), b, 100)
			return low.MarketRate <= high.MarketRate
		},
		gen.Int64Range(0, 50_000_000),
		gen.Float64Range(3, 30),
		gen.Float64Range(3, 30),
	))

	properties.Property("estimate is idempotent and ratio is never negative", prop.ForAll(
		func(followers int64, engagement, offer float64) bool {
			first := EstimateMarketRate(float64(followers), engagement, offer)
			second := EstimateMarketRate(float64(followers), engagement, offer)
			return first == second && first.OfferVsMarket >= 0
		},
		gen.Int64Range(0, 50_000_000),
		gen.Float64Range(0, 30),
		gen.Float64Range(0, 100_000),
	))

	properties.TestingRun(t)
}

func TestPaymentProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	tierGen := gen.SliceOfN(4, gen.Float64Range(0, 1000))

	properties.Property("payment is a pure function of terms and audit", prop.ForAll(
		func(base float64, bonuses []float64, tier int, deliverables bool) bool {
			terms := ContractTerms{BasePayment: base}
			for i, bonus := range bonuses {
				terms.BonusTiers = append(terms.BonusTiers, BonusTier{Tier: i, Bonus: bonus})
			}
			audit := AuditResult{TierAchieved: tier, DeliverablesMet: deliverables}
			return CalculatePayment(terms, audit) == CalculatePayment(terms.Clone(), audit)
		},
		gen.Float64Range(0, 10_000),
		tierGen,
		gen.IntRange(0, MaxTier),
		gen.Bool(),
	))

	properties.Property("missed deliverables pay half the base and no bonus", prop.ForAll(
		func(base float64, bonuses []float64, tier int) bool {
			terms := ContractTerms{BasePayment: base}
			for i, bonus := range bonuses {
				terms.BonusTiers = append(terms.BonusTiers, BonusTier{Tier: i, Bonus: bonus})
			}
			got := CalculatePayment(terms, AuditResult{TierAchieved: tier, DeliverablesMet: false})
			return got.BonusPayment == 0 && got.TotalPayment == got.BasePayment
		},
		gen.Float64Range(0, 10_000),
		tierGen,
		gen.IntRange(0, MaxTier),
	))

	properties.Property("bonus never exceeds the best unlocked tier", prop.ForAll(
		func(bonuses []float64, tier int) bool {
			terms := ContractTerms{BasePayment: 100}
			best := 0.0
			for i, bonus := range bonuses {
				terms.BonusTiers = append(terms.BonusTiers, BonusTier{Tier: i, Bonus: bonus})
				if tier > 0 && i <= tier && bonus > best {
					best = bonus
				}
			}
			got := CalculatePayment(terms, AuditResult{TierAchieved: tier, DeliverablesMet: true})
			return got.BonusPayment == best
		},
		tierGen,
		gen.IntRange(0, MaxTier),
	))

	properties.TestingRun(t)
}
