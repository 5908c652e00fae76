package port

import "tradepilot/internal/domain/model"

// Strategy turns a market snapshot plus current holdings into trade
// proposals. Implementations must be pure: no side effects, identical
// output for identical input.
type Strategy interface {
	Name() string
	Evaluate(snapshot map[string]model.MarketSnapshot, positions []*model.Position, cfg model.StrategyConfig) ([]model.TradeProposal, error)
}

// RiskGuard vets a proposal against the current holdings before it is
// accepted into the ledger. A non-nil error blocks the proposal; it is
// not a failure of the cycle.
type RiskGuard interface {
	Check(p model.TradeProposal, positions []*model.Position, cfg model.StrategyConfig) error
}
