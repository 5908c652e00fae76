package port

import (
	"context"

	"tradepilot/internal/domain/model"
)

// Notifier delivers operator notifications. Fire-and-forget: callers
// log its errors and never let them reach the trade or position flow.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}
