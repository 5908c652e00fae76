package model

import "time"

// Notification event types, matching what operators subscribe to.
const (
	EventNewTrade      = "new_trade"
	EventTradeExecuted = "trade_executed"
	EventTradeFailed   = "trade_failed"
)

// Event is a fire-and-forget operator notification.
type Event struct {
	Type     string
	Symbol   string
	Action   TradeAction
	Quantity float64
	Price    float64
	Reason   string
	Error    string
}

// Change feed entity kinds.
const (
	ChangeTrade    = "trade"
	ChangePosition = "position"
)

// Change is one mutation published on the change feed. Downstream UI
// refresh is a subscriber of this feed, not part of the engine.
type Change struct {
	Kind    string    `json:"kind"`
	Symbol  string    `json:"symbol"`
	Ts      time.Time `json:"ts"`
	Deleted bool      `json:"deleted,omitempty"`

	Trade    *Trade    `json:"trade,omitempty"`
	Position *Position `json:"position,omitempty"`
}
