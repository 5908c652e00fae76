package model

import "time"

// TradeAction is the order side.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// TradeStatus is the lifecycle state of a trade.
//
// Transitions: pending -> {approved, rejected};
// approved -> {executed, failed}; executed/rejected/failed are terminal.
// A retry after failure is a new trade, never a reopened one.
type TradeStatus string

const (
	StatusPending  TradeStatus = "pending"
	StatusApproved TradeStatus = "approved"
	StatusRejected TradeStatus = "rejected"
	StatusExecuted TradeStatus = "executed"
	StatusFailed   TradeStatus = "failed"
)

// Terminal reports whether the status can never change again.
func (s TradeStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusFailed
}

// Active reports whether the trade still blocks new proposals for its symbol.
func (s TradeStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Trade is a single proposed or executed buy/sell action.
type Trade struct {
	ID              string      `json:"id"`
	Symbol          string      `json:"symbol"` // base coin, e.g. "BTC"
	Action          TradeAction `json:"action"`
	Quantity        float64     `json:"quantity"`
	Price           float64     `json:"price"`      // proposal price at evaluation time
	Confidence      float64     `json:"confidence"` // 0..100
	Reason          string      `json:"reason"`
	Status          TradeStatus `json:"status"`
	ExchangeOrderID string      `json:"exchange_order_id,omitempty"` // set on execution
	ErrorMessage    string      `json:"error_message,omitempty"`     // set on failure
	ExecutedPrice   float64     `json:"executed_price,omitempty"`
	ExecutedQty     float64     `json:"executed_qty,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ExecutedAt      time.Time   `json:"executed_at,omitzero"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TradeProposal is the strategy's recommendation before it enters the ledger.
type TradeProposal struct {
	Symbol     string
	Action     TradeAction
	Quantity   float64
	Price      float64
	Confidence float64
	Reason     string
}

// Validate checks the proposal is well formed.
func (p TradeProposal) Validate() error {
	if p.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "empty"}
	}
	if p.Action != ActionBuy && p.Action != ActionSell {
		return &ValidationError{Field: "action", Reason: "must be BUY or SELL"}
	}
	if p.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if p.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}
