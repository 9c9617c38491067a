package model

// Announcement carries the figures published for a newly tracked pair.
// All numbers are pre-rendered fixed-point strings.
type Announcement struct {
	Pair             TrackedPair `json:"pair"`
	Liquidity0       string      `json:"liquidity0"`
	Liquidity1       string      `json:"liquidity1"`
	ConcentrationPct string      `json:"concentration_pct"`
	PriceUSD         string      `json:"price_usd"`
	PriceRef         string      `json:"price_ref"`
	MarketCapUSD     string      `json:"market_cap_usd"`
	ReferenceUSD     string      `json:"reference_usd"`
	// LockedPct is empty when no locker balances were read.
	LockedPct string `json:"locked_pct,omitempty"`
}
