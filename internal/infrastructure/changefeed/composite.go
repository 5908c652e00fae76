package changefeed

import (
	"context"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// Composite fans one change out to several feeds, returning the first
// error after trying them all.
type Composite struct {
	feeds []port.ChangeFeed
}

func NewComposite(feeds ...port.ChangeFeed) *Composite {
	// nil feeds are allowed; filter in constructor for safety
	out := make([]port.ChangeFeed, 0, len(feeds))
	for _, f := range feeds {
		if f != nil {
			out = append(out, f)
		}
	}
	return &Composite{feeds: out}
}

func (c *Composite) Publish(ctx context.Context, ch model.Change) error {
	var firstErr error
	for _, f := range c.feeds {
		if err := f.Publish(ctx, ch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.ChangeFeed = (*Composite)(nil)
