package console

import (
	"context"
	"fmt"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// Feed prints every ledger and position mutation to stdout. It stands
// in for the downstream dashboard subscriber during local runs.
type Feed struct{}

func NewFeed() port.ChangeFeed { return &Feed{} }

func (f *Feed) Publish(ctx context.Context, ch model.Change) error {
	ts := ch.Ts.Format("2006-01-02 15:04:05")
	switch {
	case ch.Kind == model.ChangeTrade && ch.Trade != nil:
		t := ch.Trade
		fmt.Printf("%s trade    %-8s %-4s %s qty=%v price=%v", ts, t.Status, t.Action, t.Symbol, t.Quantity, t.Price)
		if t.ErrorMessage != "" {
			fmt.Printf(" error=%q", t.ErrorMessage)
		}
		fmt.Print("\n")
	case ch.Kind == model.ChangePosition && ch.Deleted:
		fmt.Printf("%s position closed   %s\n", ts, ch.Symbol)
	case ch.Kind == model.ChangePosition && ch.Position != nil:
		p := ch.Position
		fmt.Printf("%s position %-8s qty=%v avg=%v\n", ts, p.Symbol, p.Quantity, p.AvgPrice)
	}
	return nil
}
