package service

import (
	"errors"
	"math"
	"testing"
	"time"

	"tradepilot/internal/domain/model"
)

func TestMomentumBuySignal(t *testing.T) {
	m := NewMomentum()

	snapshot := map[string]model.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000, Change24h: -4},
	}
	cfg := model.StrategyConfig{MaxPositionValue: 1000}

	proposals, err := m.Evaluate(snapshot, nil, cfg)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}

	p := proposals[0]
	if p.Action != model.ActionBuy {
		t.Errorf("expected BUY, got %s", p.Action)
	}
	if math.Abs(p.Quantity-0.016667) > 1e-9 {
		t.Errorf("quantity mismatch: expected 0.016667, got %f", p.Quantity)
	}
	if p.Confidence != 40 {
		t.Errorf("confidence mismatch: expected 40, got %f", p.Confidence)
	}
}

func TestMomentumNoBuyWhenHeld(t *testing.T) {
	m := NewMomentum()

	snapshot := map[string]model.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000, Change24h: -4},
	}
	positions := []*model.Position{
		{Symbol: "BTC", Quantity: 0.5, AvgPrice: 55000, UpdatedAt: time.Now()},
	}

	proposals, err := m.Evaluate(snapshot, positions, model.StrategyConfig{MaxPositionValue: 1000})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(proposals) != 0 {
		t.Errorf("expected no proposals for held symbol, got %d", len(proposals))
	}
}

func TestMomentumSellSignal(t *testing.T) {
	m := NewMomentum()

	snapshot := map[string]model.MarketSnapshot{
		"ETH": {Symbol: "ETH", Price: 3300, Change24h: 6},
	}
	positions := []*model.Position{
		{Symbol: "ETH", Quantity: 2, AvgPrice: 3000},
	}

	proposals, err := m.Evaluate(snapshot, positions, model.StrategyConfig{MaxPositionValue: 1000})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(proposals))
	}

	p := proposals[0]
	if p.Action != model.ActionSell {
		t.Errorf("expected SELL, got %s", p.Action)
	}
	if p.Quantity != 2 {
		t.Errorf("sell should cover full held quantity, got %f", p.Quantity)
	}
	if p.Confidence != 48 {
		t.Errorf("confidence mismatch: expected 48, got %f", p.Confidence)
	}
}

func TestMomentumNoSellBelowProfitThreshold(t *testing.T) {
	m := NewMomentum()

	// up 6% on the day but barely above our cost basis
	snapshot := map[string]model.MarketSnapshot{
		"ETH": {Symbol: "ETH", Price: 3030, Change24h: 6},
	}
	positions := []*model.Position{
		{Symbol: "ETH", Quantity: 2, AvgPrice: 3000},
	}

	proposals, err := m.Evaluate(snapshot, positions, model.StrategyConfig{MaxPositionValue: 1000})
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if len(proposals) != 0 {
		t.Errorf("expected no proposals, got %d", len(proposals))
	}
}

func TestMomentumInvalidPrice(t *testing.T) {
	m := NewMomentum()

	snapshot := map[string]model.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 0, Change24h: -4},
	}

	_, err := m.Evaluate(snapshot, nil, model.StrategyConfig{MaxPositionValue: 1000})
	if err == nil {
		t.Fatal("expected validation error for zero price")
	}
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestMomentumDeterministic(t *testing.T) {
	m := NewMomentum()

	snapshot := map[string]model.MarketSnapshot{
		"BTC": {Symbol: "BTC", Price: 60000, Change24h: -4},
		"ADA": {Symbol: "ADA", Price: 0.5, Change24h: -5},
		"SOL": {Symbol: "SOL", Price: 150, Change24h: -3.5},
	}
	cfg := model.StrategyConfig{MaxPositionValue: 1000}

	first, err := m.Evaluate(snapshot, nil, cfg)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	second, err := m.Evaluate(snapshot, nil, cfg)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 proposals both runs, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("proposal %d differs between identical runs", i)
		}
	}
	// sorted symbol order
	if first[0].Symbol != "ADA" || first[1].Symbol != "BTC" || first[2].Symbol != "SOL" {
		t.Errorf("unexpected proposal order: %s %s %s", first[0].Symbol, first[1].Symbol, first[2].Symbol)
	}
}
