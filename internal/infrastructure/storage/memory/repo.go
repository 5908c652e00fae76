package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// TradeLedger is an in-memory ledger with the same conditional-update
// contract as the sql implementations. The mutex plays the role the
// store-level conditional UPDATE plays there, and writes fail on a
// cancelled context the way ExecContext does.
type TradeLedger struct {
	mu     sync.Mutex
	trades map[string]*model.Trade
}

func NewTradeLedger() *TradeLedger {
	return &TradeLedger{trades: make(map[string]*model.Trade)}
}

func (l *TradeLedger) Insert(ctx context.Context, p model.TradeProposal) (*model.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.trades {
		if t.Symbol == p.Symbol && t.Status.Active() {
			return nil, model.ErrDuplicateActiveTrade
		}
	}

	now := time.Now()
	t := &model.Trade{
		ID:         uuid.NewString(),
		Symbol:     p.Symbol,
		Action:     p.Action,
		Quantity:   p.Quantity,
		Price:      p.Price,
		Confidence: p.Confidence,
		Reason:     p.Reason,
		Status:     model.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.trades[t.ID] = t

	cp := *t
	return &cp, nil
}

func (l *TradeLedger) Get(ctx context.Context, id string) (*model.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[id]
	if !ok {
		return nil, model.ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *TradeLedger) Approve(ctx context.Context, id string) (*model.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.transition(id, model.StatusPending, model.StatusApproved)
}

func (l *TradeLedger) Reject(ctx context.Context, id string) (*model.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.transition(id, model.StatusPending, model.StatusRejected)
}

func (l *TradeLedger) transition(id string, from, to model.TradeStatus) (*model.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[id]
	if !ok || t.Status != from {
		return nil, model.ErrInvalidTransition
	}
	t.Status = to
	t.UpdatedAt = time.Now()

	cp := *t
	return &cp, nil
}

func (l *TradeLedger) MarkExecuted(ctx context.Context, id, exchangeOrderID string, executedPrice, executedQty float64, executedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[id]
	if !ok {
		return model.ErrTradeNotFound
	}
	if t.Status == model.StatusExecuted && t.ExchangeOrderID == exchangeOrderID {
		return nil
	}
	if t.Status != model.StatusApproved {
		return model.ErrInvalidTransition
	}
	t.Status = model.StatusExecuted
	t.ExchangeOrderID = exchangeOrderID
	t.ExecutedPrice = executedPrice
	t.ExecutedQty = executedQty
	t.ExecutedAt = executedAt
	t.UpdatedAt = time.Now()
	return nil
}

func (l *TradeLedger) MarkFailed(ctx context.Context, id, errorMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[id]
	if !ok || t.Status != model.StatusApproved {
		return model.ErrInvalidTransition
	}
	t.Status = model.StatusFailed
	t.ErrorMessage = errorMessage
	t.UpdatedAt = time.Now()
	return nil
}

func (l *TradeLedger) ListPending(ctx context.Context) ([]*model.Trade, error) {
	return l.filter(func(t *model.Trade) bool { return t.Status == model.StatusPending }, byCreatedAsc, 0), nil
}

func (l *TradeLedger) ListHistory(ctx context.Context, limit int) ([]*model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.filter(func(t *model.Trade) bool { return t.Status != model.StatusPending }, byUpdatedDesc, limit), nil
}

func (l *TradeLedger) ListExecuted(ctx context.Context) ([]*model.Trade, error) {
	return l.filter(func(t *model.Trade) bool { return t.Status == model.StatusExecuted }, byExecutedAsc, 0), nil
}

func byCreatedAsc(a, b *model.Trade) bool  { return a.CreatedAt.Before(b.CreatedAt) }
func byUpdatedDesc(a, b *model.Trade) bool { return a.UpdatedAt.After(b.UpdatedAt) }
func byExecutedAsc(a, b *model.Trade) bool { return a.ExecutedAt.Before(b.ExecutedAt) }

func (l *TradeLedger) filter(keep func(*model.Trade) bool, less func(a, b *model.Trade) bool, limit int) []*model.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*model.Trade
	for _, t := range l.trades {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PositionStore is the in-memory counterpart of the sql position repos.
type PositionStore struct {
	mu        sync.Mutex
	positions map[string]*model.Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]*model.Position)}
}

func (s *PositionStore) Get(ctx context.Context, symbol string) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *PositionStore) Upsert(ctx context.Context, pos *model.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *pos
	s.positions[pos.Symbol] = &cp
	return nil
}

func (s *PositionStore) Delete(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, symbol)
	return nil
}

func (s *PositionStore) List(ctx context.Context) ([]*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

var (
	_ port.TradeLedger   = (*TradeLedger)(nil)
	_ port.PositionStore = (*PositionStore)(nil)
)
