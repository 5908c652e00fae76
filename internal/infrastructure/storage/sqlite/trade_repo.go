package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// TradeRepo is the sqlite trade ledger. Every transition is a single
// conditional UPDATE checked via RowsAffected, so two racing callers
// are serialized by the store, not by in-process locks.
type TradeRepo struct {
	db *sql.DB
}

func NewTradeRepo(db *sql.DB) *TradeRepo {
	return &TradeRepo{db: db}
}

const tradeColumns = `id, symbol, action, quantity, price, confidence, reason, status,
       exchange_order_id, error_message, executed_price, executed_qty,
       created_at, executed_at, updated_at`

func (tr *TradeRepo) Insert(ctx context.Context, p model.TradeProposal) (*model.Trade, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UnixMilli()

	// check-and-insert in one statement; the partial unique index on
	// active trades backs it up
	res, err := tr.db.ExecContext(ctx, `
		INSERT INTO trades(id, symbol, action, quantity, price, confidence, reason, status, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM trades WHERE symbol = ? AND status IN ('pending', 'approved')
		)
	`, id, p.Symbol, string(p.Action), p.Quantity, p.Price, p.Confidence, p.Reason, now, now, p.Symbol)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, model.ErrDuplicateActiveTrade
		}
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}
	if n == 0 {
		return nil, model.ErrDuplicateActiveTrade
	}

	return tr.Get(ctx, id)
}

func (tr *TradeRepo) Get(ctx context.Context, id string) (*model.Trade, error) {
	row := tr.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return t, nil
}

func (tr *TradeRepo) Approve(ctx context.Context, id string) (*model.Trade, error) {
	if err := tr.transition(ctx, id, model.StatusPending, model.StatusApproved); err != nil {
		return nil, err
	}
	return tr.Get(ctx, id)
}

func (tr *TradeRepo) Reject(ctx context.Context, id string) (*model.Trade, error) {
	if err := tr.transition(ctx, id, model.StatusPending, model.StatusRejected); err != nil {
		return nil, err
	}
	return tr.Get(ctx, id)
}

// transition performs the conditional status update. Zero rows means
// the trade is missing or not in the expected state; either way the
// caller must assume no side effect happened.
func (tr *TradeRepo) transition(ctx context.Context, id string, from, to model.TradeStatus) error {
	res, err := tr.db.ExecContext(ctx, `
		UPDATE trades SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, string(to), time.Now().UnixMilli(), id, string(from))
	if err != nil {
		return fmt.Errorf("transition %s->%s: %w", from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition %s->%s: %w", from, to, err)
	}
	if n == 0 {
		return model.ErrInvalidTransition
	}
	return nil
}

func (tr *TradeRepo) MarkExecuted(ctx context.Context, id, exchangeOrderID string, executedPrice, executedQty float64, executedAt time.Time) error {
	res, err := tr.db.ExecContext(ctx, `
		UPDATE trades
		SET status = 'executed', exchange_order_id = ?, executed_price = ?, executed_qty = ?,
		    executed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'approved'
	`, exchangeOrderID, executedPrice, executedQty, executedAt.UnixMilli(), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark executed: %w", err)
	}
	if n > 0 {
		return nil
	}

	// zero rows: either a replay of the same fill (fine) or a real
	// state machine violation
	t, err := tr.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == model.StatusExecuted && t.ExchangeOrderID == exchangeOrderID {
		return nil
	}
	return model.ErrInvalidTransition
}

func (tr *TradeRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	res, err := tr.db.ExecContext(ctx, `
		UPDATE trades SET status = 'failed', error_message = ?, updated_at = ?
		WHERE id = ? AND status = 'approved'
	`, errorMessage, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n == 0 {
		return model.ErrInvalidTransition
	}
	return nil
}

func (tr *TradeRepo) ListPending(ctx context.Context) ([]*model.Trade, error) {
	return tr.list(ctx, `SELECT `+tradeColumns+` FROM trades WHERE status = 'pending' ORDER BY created_at ASC`)
}

func (tr *TradeRepo) ListHistory(ctx context.Context, limit int) ([]*model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	return tr.list(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE status != 'pending'
		ORDER BY updated_at DESC LIMIT ?`, limit)
}

func (tr *TradeRepo) ListExecuted(ctx context.Context) ([]*model.Trade, error) {
	return tr.list(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE status = 'executed'
		ORDER BY executed_at ASC`)
}

func (tr *TradeRepo) list(ctx context.Context, query string, args ...any) ([]*model.Trade, error) {
	rows, err := tr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []*model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("list trades: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*model.Trade, error) {
	var (
		t          model.Trade
		action     string
		status     string
		orderID    sql.NullString
		errMsg     sql.NullString
		execPrice  sql.NullFloat64
		execQty    sql.NullFloat64
		createdAt  int64
		executedAt sql.NullInt64
		updatedAt  int64
	)
	err := row.Scan(&t.ID, &t.Symbol, &action, &t.Quantity, &t.Price, &t.Confidence, &t.Reason, &status,
		&orderID, &errMsg, &execPrice, &execQty, &createdAt, &executedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Action = model.TradeAction(action)
	t.Status = model.TradeStatus(status)
	t.ExchangeOrderID = orderID.String
	t.ErrorMessage = errMsg.String
	t.ExecutedPrice = execPrice.Float64
	t.ExecutedQty = execQty.Float64
	t.CreatedAt = time.UnixMilli(createdAt)
	if executedAt.Valid {
		t.ExecutedAt = time.UnixMilli(executedAt.Int64)
	}
	t.UpdatedAt = time.UnixMilli(updatedAt)
	return &t, nil
}

var _ port.TradeLedger = (*TradeRepo)(nil)
