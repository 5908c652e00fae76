package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// PositionBook owns the per-symbol quantity and weighted-average cost.
// It is mutated only through ApplyFill, and only the orchestrator's
// execution path (plus the reconciler repairing that path) calls it,
// so the read-modify-write below has a single writer.
type PositionBook struct {
	store port.PositionStore
	feed  port.ChangeFeed
}

func NewPositionBook(store port.PositionStore, feed port.ChangeFeed) *PositionBook {
	return &PositionBook{store: store, feed: feed}
}

// ApplyFill applies one confirmed fill. The caller guarantees it is
// invoked exactly once per fill. executedAt becomes the position's
// updated_at; the reconciler uses that as its replay watermark.
//
// BUY creates or re-weights the position. SELL reduces quantity and
// leaves avg_price alone; a sell to zero (or below, which is an
// over-sell the caller should have prevented) deletes the position.
func (b *PositionBook) ApplyFill(ctx context.Context, symbol string, action model.TradeAction, executedQty, executedPrice float64, executedAt time.Time) (*model.Position, error) {
	pos, err := b.store.Get(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("apply fill %s %s: %w", action, symbol, err)
	}

	switch action {
	case model.ActionBuy:
		if pos == nil {
			pos = &model.Position{
				Symbol:   symbol,
				Quantity: executedQty,
				AvgPrice: executedPrice,
			}
		} else {
			newQty := pos.Quantity + executedQty
			pos.AvgPrice = (pos.Quantity*pos.AvgPrice + executedQty*executedPrice) / newQty
			pos.Quantity = newQty
		}
		pos.UpdatedAt = executedAt
		if err := b.store.Upsert(ctx, pos); err != nil {
			return nil, fmt.Errorf("apply fill %s %s: %w", action, symbol, err)
		}
		b.publish(ctx, pos, false)
		return pos, nil

	case model.ActionSell:
		if pos == nil {
			// nothing held; either an over-sell was let through or the
			// deletion already happened on a previous pass
			log.Warn().Str("symbol", symbol).Float64("qty", executedQty).
				Msg("sell fill for symbol with no position")
			return nil, nil
		}
		newQty := pos.Quantity - executedQty
		if newQty <= 0 {
			if newQty < 0 {
				log.Warn().Str("symbol", symbol).
					Float64("held", pos.Quantity).Float64("sold", executedQty).
					Msg("sell fill exceeds held quantity")
			}
			if err := b.store.Delete(ctx, symbol); err != nil {
				return nil, fmt.Errorf("apply fill %s %s: %w", action, symbol, err)
			}
			b.publish(ctx, &model.Position{Symbol: symbol, UpdatedAt: executedAt}, true)
			return nil, nil
		}
		pos.Quantity = newQty
		pos.UpdatedAt = executedAt
		if err := b.store.Upsert(ctx, pos); err != nil {
			return nil, fmt.Errorf("apply fill %s %s: %w", action, symbol, err)
		}
		b.publish(ctx, pos, false)
		return pos, nil

	default:
		return nil, &model.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
}

// Get returns a copy of the position, or nil when the symbol is not held.
func (b *PositionBook) Get(ctx context.Context, symbol string) (*model.Position, error) {
	return b.store.Get(ctx, symbol)
}

// Snapshot returns copies of all positions.
func (b *PositionBook) Snapshot(ctx context.Context) ([]*model.Position, error) {
	return b.store.List(ctx)
}

func (b *PositionBook) publish(ctx context.Context, pos *model.Position, deleted bool) {
	if b.feed == nil {
		return
	}
	ch := model.Change{
		Kind:    model.ChangePosition,
		Symbol:  pos.Symbol,
		Ts:      time.Now(),
		Deleted: deleted,
	}
	if !deleted {
		cp := *pos
		ch.Position = &cp
	}
	if err := b.feed.Publish(ctx, ch); err != nil {
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("position change publish failed")
	}
}
