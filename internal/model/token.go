package model

// TokenInfo captures ERC20 metadata for one leg of a pair.
type TokenInfo struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply,omitempty"`
}
