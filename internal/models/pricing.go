package models

// PricingBreakdown decomposes a slot's final price. All multipliers are
// independent and compose multiplicatively; none is capped.
type PricingBreakdown struct {
	BasePrice            float64 `json:"base_price"`
	DemandMultiplier     float64 `json:"demand_multiplier"`
	TimeMultiplier       float64 `json:"time_multiplier"`
	HistoricalMultiplier float64 `json:"historical_multiplier"`
	DiscountFactor       float64 `json:"discount_factor"`
	DiscountAmount       float64 `json:"discount_amount"`
	FinalPrice           float64 `json:"final_price"`
}
