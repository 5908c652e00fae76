package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// Reconciler repairs the gap a crash can leave between the ledger and
// the position book: a trade marked executed whose fill never reached
// the book. It replays such fills exactly once, deriving "not yet
// reflected" from the trade's executed_at versus the position's
// updated_at watermark (ApplyFill stamps updated_at with the fill's
// executed_at, so an applied fill is never at or past the watermark).
type Reconciler struct {
	ledger port.TradeLedger
	book   *PositionBook
}

func NewReconciler(ledger port.TradeLedger, book *PositionBook) *Reconciler {
	return &Reconciler{ledger: ledger, book: book}
}

// Run scans executed trades and replays unapplied fills. Returns the
// number of fills replayed.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	executed, err := r.ledger.ListExecuted(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	bySymbol := make(map[string][]*model.Trade)
	for _, t := range executed {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	applied := 0
	for symbol, trades := range bySymbol {
		n, err := r.reconcileSymbol(ctx, symbol, trades)
		if err != nil {
			return applied, err
		}
		applied += n
	}

	if applied > 0 {
		log.Info().Int("fills", applied).Msg("reconciliation replayed fills")
	}
	return applied, nil
}

// reconcileSymbol replays the trailing fills the book has not seen.
// trades arrive ordered by executed_at ascending.
//
// With a live position the watermark decides. With no position the
// last executed SELL is the anchor: a SELL that had not been applied
// would have left the position standing, so a missing position means
// everything through that SELL is reflected and only later BUYs can
// be unapplied.
func (r *Reconciler) reconcileSymbol(ctx context.Context, symbol string, trades []*model.Trade) (int, error) {
	pos, err := r.book.Get(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("reconcile %s: %w", symbol, err)
	}

	start := 0
	if pos != nil {
		for start < len(trades) && !trades[start].ExecutedAt.After(pos.UpdatedAt) {
			start++
		}
	} else {
		for i := len(trades) - 1; i >= 0; i-- {
			if trades[i].Action == model.ActionSell {
				start = i + 1
				break
			}
		}
	}

	applied := 0
	for _, t := range trades[start:] {
		log.Warn().Str("id", t.ID).Str("symbol", symbol).
			Str("action", string(t.Action)).Float64("qty", t.ExecutedQty).
			Msg("replaying unapplied fill")
		if _, err := r.book.ApplyFill(ctx, symbol, t.Action, t.ExecutedQty, t.ExecutedPrice, t.ExecutedAt); err != nil {
			return applied, fmt.Errorf("reconcile %s: %w", symbol, err)
		}
		applied++
	}
	return applied, nil
}
