package port

import (
	"context"
	"time"

	"tradepilot/internal/domain/model"
)

// TradeLedger is the persistent trade state machine. Every transition
// is a store-level conditional update ("set status X only if currently
// Y"); there is no in-process locking above it.
type TradeLedger interface {
	// Insert creates a pending trade from a proposal, atomically
	// checking that no active (pending/approved) trade exists for the
	// symbol. Returns model.ErrDuplicateActiveTrade when one does;
	// that is deduplication, not a failure.
	Insert(ctx context.Context, p model.TradeProposal) (*model.Trade, error)

	Get(ctx context.Context, id string) (*model.Trade, error)

	// Approve transitions pending -> approved. Of two concurrent calls
	// exactly one succeeds; the loser gets model.ErrInvalidTransition.
	Approve(ctx context.Context, id string) (*model.Trade, error)

	// Reject transitions pending -> rejected with the same exclusivity.
	Reject(ctx context.Context, id string) (*model.Trade, error)

	// MarkExecuted transitions approved -> executed and records the
	// fill. A repeat call with the same exchange order id is a no-op.
	MarkExecuted(ctx context.Context, id, exchangeOrderID string, executedPrice, executedQty float64, executedAt time.Time) error

	// MarkFailed transitions approved -> failed, persisting the error
	// message for operator visibility.
	MarkFailed(ctx context.Context, id, errorMessage string) error

	ListPending(ctx context.Context) ([]*model.Trade, error)

	// ListHistory returns non-pending trades, newest first.
	ListHistory(ctx context.Context, limit int) ([]*model.Trade, error)

	// ListExecuted returns executed trades ordered by executed_at
	// ascending. The reconciliation pass replays fills from it.
	ListExecuted(ctx context.Context) ([]*model.Trade, error)
}
