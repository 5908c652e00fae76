package service

import (
	"context"
	"math"
	"testing"
	"time"

	"tradepilot/internal/domain/model"
	"tradepilot/internal/infrastructure/storage/memory"
)

func newTestBook() *PositionBook {
	return NewPositionBook(memory.NewPositionStore(), &fakeFeed{})
}

func TestApplyFillBuyCreatesPosition(t *testing.T) {
	book := newTestBook()
	ctx := context.Background()

	pos, err := book.ApplyFill(ctx, "BTC", model.ActionBuy, 0.016667, 60000, time.Now())
	if err != nil {
		t.Fatalf("apply fill failed: %v", err)
	}
	if pos.Quantity != 0.016667 {
		t.Errorf("quantity mismatch: got %f", pos.Quantity)
	}
	if pos.AvgPrice != 60000 {
		t.Errorf("avg price mismatch: got %f", pos.AvgPrice)
	}
}

func TestApplyFillBuyWeightedAverage(t *testing.T) {
	book := newTestBook()
	ctx := context.Background()

	if _, err := book.ApplyFill(ctx, "BTC", model.ActionBuy, 0.5, 100, time.Now()); err != nil {
		t.Fatalf("first fill failed: %v", err)
	}
	pos, err := book.ApplyFill(ctx, "BTC", model.ActionBuy, 0.5, 200, time.Now())
	if err != nil {
		t.Fatalf("second fill failed: %v", err)
	}

	if math.Abs(pos.Quantity-1.0) > 1e-12 {
		t.Errorf("quantity mismatch: expected 1.0, got %f", pos.Quantity)
	}
	if math.Abs(pos.AvgPrice-150) > 1e-12 {
		t.Errorf("avg price mismatch: expected 150, got %f", pos.AvgPrice)
	}
}

func TestApplyFillSellKeepsAvgPrice(t *testing.T) {
	book := newTestBook()
	ctx := context.Background()

	if _, err := book.ApplyFill(ctx, "ETH", model.ActionBuy, 2, 3000, time.Now()); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	pos, err := book.ApplyFill(ctx, "ETH", model.ActionSell, 0.5, 3500, time.Now())
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if math.Abs(pos.Quantity-1.5) > 1e-12 {
		t.Errorf("quantity mismatch: expected 1.5, got %f", pos.Quantity)
	}
	if pos.AvgPrice != 3000 {
		t.Errorf("sell must not touch avg price, got %f", pos.AvgPrice)
	}
}

func TestApplyFillSellToZeroDeletes(t *testing.T) {
	book := newTestBook()
	ctx := context.Background()

	if _, err := book.ApplyFill(ctx, "SOL", model.ActionBuy, 3, 150, time.Now()); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	pos, err := book.ApplyFill(ctx, "SOL", model.ActionSell, 3, 180, time.Now())
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if pos != nil {
		t.Errorf("expected position deleted, got %+v", pos)
	}

	got, err := book.Get(ctx, "SOL")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("position should be gone, got %+v", got)
	}
}

func TestApplyFillOverSellDeletesNotNegative(t *testing.T) {
	book := newTestBook()
	ctx := context.Background()

	if _, err := book.ApplyFill(ctx, "ADA", model.ActionBuy, 100, 0.5, time.Now()); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, err := book.ApplyFill(ctx, "ADA", model.ActionSell, 150, 0.6, time.Now()); err != nil {
		t.Fatalf("over-sell failed: %v", err)
	}

	got, err := book.Get(ctx, "ADA")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("over-sold position must be deleted, never negative, got %+v", got)
	}
}

func TestApplyFillWatermark(t *testing.T) {
	book := newTestBook()
	ctx := context.Background()

	executedAt := time.UnixMilli(1700000000000)
	pos, err := book.ApplyFill(ctx, "BTC", model.ActionBuy, 1, 50000, executedAt)
	if err != nil {
		t.Fatalf("apply fill failed: %v", err)
	}
	if !pos.UpdatedAt.Equal(executedAt) {
		t.Errorf("updated_at must carry the fill's executed_at, got %v", pos.UpdatedAt)
	}
}

func TestApplyFillPublishesChanges(t *testing.T) {
	feed := &fakeFeed{}
	book := NewPositionBook(memory.NewPositionStore(), feed)
	ctx := context.Background()

	if _, err := book.ApplyFill(ctx, "BTC", model.ActionBuy, 1, 50000, time.Now()); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, err := book.ApplyFill(ctx, "BTC", model.ActionSell, 1, 51000, time.Now()); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if len(feed.changes) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(feed.changes))
	}
	if feed.changes[0].Kind != model.ChangePosition || feed.changes[0].Deleted {
		t.Errorf("unexpected first change: %+v", feed.changes[0])
	}
	if !feed.changes[1].Deleted {
		t.Errorf("sell to zero should publish a deletion, got %+v", feed.changes[1])
	}
}
