package port

import (
	"context"

	"tradepilot/internal/domain/model"
)

// PositionStore persists per-symbol holdings. The weighted-average
// math lives above it in the position book service; the store is dumb
// on purpose.
type PositionStore interface {
	// Get returns the position or (nil, nil) when the symbol is not held.
	Get(ctx context.Context, symbol string) (*model.Position, error)

	Upsert(ctx context.Context, pos *model.Position) error

	Delete(ctx context.Context, symbol string) error

	List(ctx context.Context) ([]*model.Position, error)
}
