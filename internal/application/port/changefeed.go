package port

import (
	"context"

	"tradepilot/internal/domain/model"
)

// ChangeFeed receives every ledger and position book mutation. Live
// dashboards subscribe downstream; the engine only publishes.
type ChangeFeed interface {
	Publish(ctx context.Context, ch model.Change) error
}
