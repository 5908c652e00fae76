package service

import (
	"fmt"

	"tradepilot/internal/domain/model"
)

// RiskGuard applies portfolio-level limits to strategy proposals before
// they reach the ledger. It is pure: callers pass the current holdings.
type RiskGuard struct {
	// MaxOpenPositions caps how many symbols may be held at once.
	// Zero means unlimited.
	MaxOpenPositions int

	// MaxTotalExposure caps the summed cost basis of all holdings plus
	// the proposal, in quote currency. Zero means unlimited.
	MaxTotalExposure float64
}

func NewRiskGuard() *RiskGuard {
	return &RiskGuard{
		MaxOpenPositions: 10,
		MaxTotalExposure: 10000,
	}
}

// Check returns nil when the proposal is acceptable. SELL proposals
// only shrink exposure and pass unless they exceed the held quantity.
func (g *RiskGuard) Check(p model.TradeProposal, positions []*model.Position, cfg model.StrategyConfig) error {
	var held *model.Position
	for _, pos := range positions {
		if pos.Symbol == p.Symbol {
			held = pos
			break
		}
	}

	if p.Action == model.ActionSell {
		if held == nil {
			return fmt.Errorf("sell %s: no position held", p.Symbol)
		}
		if p.Quantity > held.Quantity {
			return fmt.Errorf("sell %s: quantity %v exceeds held %v", p.Symbol, p.Quantity, held.Quantity)
		}
		return nil
	}

	proposalValue := p.Quantity * p.Price

	// quantities are rounded to six decimals, so a budget-sized buy can
	// overshoot by up to half a rounding step
	tolerance := p.Price * 5e-7

	if cfg.MaxPositionValue > 0 {
		heldValue := 0.0
		if held != nil {
			heldValue = held.Quantity * held.AvgPrice
		}
		if heldValue+proposalValue > cfg.MaxPositionValue+tolerance {
			return fmt.Errorf("buy %s: position value %.2f exceeds limit %.2f",
				p.Symbol, heldValue+proposalValue, cfg.MaxPositionValue)
		}
	}

	if g.MaxOpenPositions > 0 && held == nil && len(positions) >= g.MaxOpenPositions {
		return fmt.Errorf("buy %s: open positions at limit %d", p.Symbol, g.MaxOpenPositions)
	}

	if g.MaxTotalExposure > 0 {
		exposure := proposalValue
		for _, pos := range positions {
			exposure += pos.Quantity * pos.AvgPrice
		}
		if exposure > g.MaxTotalExposure+tolerance {
			return fmt.Errorf("buy %s: total exposure %.2f exceeds limit %.2f",
				p.Symbol, exposure, g.MaxTotalExposure)
		}
	}
	return nil
}
