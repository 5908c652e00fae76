package model

import "time"

// Position is the aggregate holding of a symbol.
//
// AvgPrice is the quantity-weighted cost basis; it changes only on BUY
// fills. UpdatedAt carries the executed_at of the last fill applied,
// which is what the reconciliation pass compares against.
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	AvgPrice  float64   `json:"avg_price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Value returns the position value at the given market price.
func (p Position) Value(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPct returns the unrealized gain percentage at the given price.
func (p Position) UnrealizedPct(price float64) float64 {
	if p.AvgPrice == 0 {
		return 0
	}
	return (price - p.AvgPrice) / p.AvgPrice * 100
}
