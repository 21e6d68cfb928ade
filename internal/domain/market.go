package domain

const (
	DefaultFollowers      = 10000
	DefaultEngagementRate = 3.0

	ratePerThousandFollowers = 10.0
	baselineEngagementRate   = 3.0
	engagementStep           = 0.1
)

type MarketEstimate struct {
	MarketRate    float64 `json:"calculated_market_rate"`
	OfferVsMarket float64 `json:"offer_vs_market"`
}

// EstimateMarketRate prices a creator at $10 per thousand followers, scaled
// by 10% per engagement point above (or below) a 3% baseline.
func EstimateMarketRate(followers, engagementRate, offerAmount float64) MarketEstimate {
	baseRate := (followers / 1000) * ratePerThousandFollowers
	multiplier := 1 + (engagementRate-baselineEngagementRate)*engagementStep
	marketRate := baseRate * multiplier

	ratio := 0.0
	if marketRate > 0 {
		ratio = offerAmount / marketRate
	}
	return MarketEstimate{MarketRate: marketRate, OfferVsMarket: ratio}
}
