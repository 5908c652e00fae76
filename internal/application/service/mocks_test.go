package service

import (
	"context"
	"sync"
	"sync/atomic"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

type fakeGateway struct {
	calls    atomic.Int64
	result   *port.ExecutionResult
	err      error
	onSubmit func()
}

func (g *fakeGateway) SubmitOrder(ctx context.Context, trade *model.Trade) (*port.ExecutionResult, error) {
	g.calls.Add(1)
	if g.onSubmit != nil {
		g.onSubmit()
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &port.ExecutionResult{
		ExchangeOrderID: "42",
		ExecutedQty:     trade.Quantity,
		ExecutedPrice:   trade.Price,
		Status:          "FILLED",
	}, nil
}

type fakeMarket struct {
	snapshot map[string]model.MarketSnapshot
	err      error
}

func (m *fakeMarket) GetSnapshot(ctx context.Context) (map[string]model.MarketSnapshot, error) {
	return m.snapshot, m.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, ev model.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *fakeNotifier) byType(t string) []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeFeed struct {
	mu      sync.Mutex
	changes []model.Change
}

func (f *fakeFeed) Publish(ctx context.Context, ch model.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, ch)
	return nil
}
