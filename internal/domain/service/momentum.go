package service

import (
	"fmt"
	"math"
	"sort"

	"tradepilot/internal/domain/model"
)

// Momentum is the shipped reference strategy: buy a sharp 24h dip when
// the symbol is not held, take profit after a sharp 24h run. It is one
// implementation of port.Strategy, not the engine itself.
type Momentum struct {
	BuyDipPct     float64 // buy when change_24h below this (negative)
	SellRunPct    float64 // consider selling when change_24h above this
	TakeProfitPct float64 // minimum unrealized gain before selling
}

// NewMomentum returns the strategy with its default thresholds.
func NewMomentum() *Momentum {
	return &Momentum{
		BuyDipPct:     -3,
		SellRunPct:    5,
		TakeProfitPct: 3,
	}
}

func (m *Momentum) Name() string { return "momentum" }

// Evaluate is pure and deterministic: symbols are visited in sorted
// order and nothing outside the arguments is read.
func (m *Momentum) Evaluate(snapshot map[string]model.MarketSnapshot, positions []*model.Position, cfg model.StrategyConfig) ([]model.TradeProposal, error) {
	held := make(map[string]*model.Position, len(positions))
	for _, p := range positions {
		if p != nil && p.Quantity > 0 {
			held[p.Symbol] = p
		}
	}

	symbols := make([]string, 0, len(snapshot))
	for sym := range snapshot {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var proposals []model.TradeProposal
	for _, sym := range symbols {
		data := snapshot[sym]
		if data.Price <= 0 {
			return nil, &model.ValidationError{Field: "price", Reason: fmt.Sprintf("non-positive for %s", sym)}
		}

		pos := held[sym]

		if data.Change24h < m.BuyDipPct && pos == nil {
			qty := round6(cfg.MaxPositionValue / data.Price)
			proposals = append(proposals, model.TradeProposal{
				Symbol:     sym,
				Action:     model.ActionBuy,
				Quantity:   qty,
				Price:      data.Price,
				Confidence: math.Min(90, math.Abs(data.Change24h)*10),
				Reason:     fmt.Sprintf("Price dropped %.2f%% - potential rebound opportunity", data.Change24h),
			})
		}

		if pos != nil && data.Change24h > m.SellRunPct {
			profitPct := pos.UnrealizedPct(data.Price)
			if profitPct > m.TakeProfitPct {
				proposals = append(proposals, model.TradeProposal{
					Symbol:     sym,
					Action:     model.ActionSell,
					Quantity:   pos.Quantity,
					Price:      data.Price,
					Confidence: math.Min(95, data.Change24h*8),
					Reason:     fmt.Sprintf("Price gained %.2f%% (%.2f%% profit) - taking profit", data.Change24h, profitPct),
				})
			}
		}
	}

	return proposals, nil
}

// round6 rounds to 6 decimal places, matching exchange lot precision.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
