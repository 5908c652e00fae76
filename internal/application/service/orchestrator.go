package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// Orchestrator sequences the proposal path (strategy -> ledger) and
// the execution path (approve -> gateway -> ledger -> position book).
// It owns the failure policy: a failed or timed-out submission ends
// the trade at failed and never touches the position book, and
// nothing is retried automatically - a retry is a new trade.
type Orchestrator struct {
	ledger   port.TradeLedger
	book     *PositionBook
	gateway  port.ExchangeGateway
	market   port.MarketData
	strategy port.Strategy
	guard    port.RiskGuard
	notifier port.Notifier
	feed     port.ChangeFeed

	orderTimeout time.Duration
}

type OrchestratorDeps struct {
	Ledger   port.TradeLedger
	Book     *PositionBook
	Gateway  port.ExchangeGateway
	Market   port.MarketData
	Strategy port.Strategy
	Guard    port.RiskGuard
	Notifier port.Notifier
	Feed     port.ChangeFeed

	OrderTimeout time.Duration
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.OrderTimeout <= 0 {
		deps.OrderTimeout = 10 * time.Second
	}
	return &Orchestrator{
		ledger:       deps.Ledger,
		book:         deps.Book,
		gateway:      deps.Gateway,
		market:       deps.Market,
		strategy:     deps.Strategy,
		guard:        deps.Guard,
		notifier:     deps.Notifier,
		feed:         deps.Feed,
		orderTimeout: deps.OrderTimeout,
	}
}

// RunEvaluationCycle fetches the market snapshot and current holdings,
// asks the strategy for proposals and inserts them as pending trades.
// A symbol that already has an active trade is silently skipped.
func (o *Orchestrator) RunEvaluationCycle(ctx context.Context, cfg model.StrategyConfig) error {
	if !cfg.AlgorithmEnabled {
		log.Debug().Msg("algorithm disabled, skipping evaluation cycle")
		return nil
	}

	snapshot, err := o.market.GetSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("evaluation cycle: %w", err)
	}
	positions, err := o.book.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("evaluation cycle: %w", err)
	}

	proposals, err := o.strategy.Evaluate(snapshot, positions, cfg)
	if err != nil {
		return fmt.Errorf("evaluation cycle: %w", err)
	}

	log.Info().Str("strategy", o.strategy.Name()).
		Int("symbols", len(snapshot)).Int("positions", len(positions)).
		Int("proposals", len(proposals)).Msg("evaluation cycle")

	for _, p := range proposals {
		if o.guard != nil {
			if err := o.guard.Check(p, positions, cfg); err != nil {
				log.Warn().Err(err).Str("symbol", p.Symbol).
					Str("action", string(p.Action)).Msg("proposal blocked by risk limits")
				continue
			}
		}

		trade, err := o.ledger.Insert(ctx, p)
		if errors.Is(err, model.ErrDuplicateActiveTrade) {
			log.Debug().Str("symbol", p.Symbol).Msg("skipping proposal, active trade exists")
			continue
		}
		if err != nil {
			return fmt.Errorf("insert proposal %s: %w", p.Symbol, err)
		}

		log.Info().Str("id", trade.ID).Str("symbol", trade.Symbol).
			Str("action", string(trade.Action)).Float64("qty", trade.Quantity).
			Float64("confidence", trade.Confidence).Msg("pending trade created")

		o.publishTrade(ctx, trade)
		o.notify(ctx, model.Event{
			Type:     model.EventNewTrade,
			Symbol:   trade.Symbol,
			Action:   trade.Action,
			Quantity: trade.Quantity,
			Price:    trade.Price,
			Reason:   trade.Reason,
		})
	}
	return nil
}

// RunApprovalFlow drives one approved trade through execution.
// The ledger's pending->approved transition is the idempotency
// barrier: of two concurrent calls exactly one reaches the gateway.
func (o *Orchestrator) RunApprovalFlow(ctx context.Context, tradeID string) error {
	trade, err := o.ledger.Approve(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("approve %s: %w", tradeID, err)
	}
	o.publishTrade(ctx, trade)

	subCtx, cancel := context.WithTimeout(ctx, o.orderTimeout)
	res, err := o.gateway.SubmitOrder(subCtx, trade)
	cancel()

	// once the order has gone out its outcome must be recorded even if
	// the caller has gone away; a cancelled MarkFailed/MarkExecuted
	// would leave the trade stuck at approved, blocking its symbol
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		// rejection or timeout: fill status is unknown at worst, so the
		// position book stays untouched and the trade ends at failed
		return o.failTrade(ctx, trade, err)
	}

	executedAt := time.Now()

	// record the fill before mutating the book: a crash between the two
	// writes leaves an executed trade the reconciler can replay
	if err := o.ledger.MarkExecuted(ctx, trade.ID, res.ExchangeOrderID, res.ExecutedPrice, res.ExecutedQty, executedAt); err != nil {
		return fmt.Errorf("mark executed %s: %w", trade.ID, err)
	}
	if _, err := o.book.ApplyFill(ctx, trade.Symbol, trade.Action, res.ExecutedQty, res.ExecutedPrice, executedAt); err != nil {
		// the executed record is durable; the next reconciliation pass
		// will apply this fill
		return fmt.Errorf("apply fill %s: %w", trade.ID, err)
	}

	log.Info().Str("id", trade.ID).Str("symbol", trade.Symbol).
		Str("action", string(trade.Action)).Str("orderId", res.ExchangeOrderID).
		Float64("qty", res.ExecutedQty).Float64("price", res.ExecutedPrice).
		Msg("trade executed")

	if updated, err := o.ledger.Get(ctx, trade.ID); err == nil {
		o.publishTrade(ctx, updated)
	}
	o.notify(ctx, model.Event{
		Type:     model.EventTradeExecuted,
		Symbol:   trade.Symbol,
		Action:   trade.Action,
		Quantity: res.ExecutedQty,
		Price:    res.ExecutedPrice,
	})
	return nil
}

// RejectTrade ends a pending trade without execution.
func (o *Orchestrator) RejectTrade(ctx context.Context, tradeID string) error {
	trade, err := o.ledger.Reject(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("reject %s: %w", tradeID, err)
	}
	log.Info().Str("id", trade.ID).Str("symbol", trade.Symbol).Msg("trade rejected")
	o.publishTrade(ctx, trade)
	return nil
}

func (o *Orchestrator) failTrade(ctx context.Context, trade *model.Trade, cause error) error {
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "exchange submission timed out"
	}

	log.Error().Err(cause).Str("id", trade.ID).Str("symbol", trade.Symbol).
		Msg("order submission failed")

	if err := o.ledger.MarkFailed(ctx, trade.ID, msg); err != nil {
		// the store call itself failed; propagate rather than assume
		// the transition happened
		return fmt.Errorf("mark failed %s: %w", trade.ID, err)
	}
	if updated, err := o.ledger.Get(ctx, trade.ID); err == nil {
		o.publishTrade(ctx, updated)
	}
	o.notify(ctx, model.Event{
		Type:     model.EventTradeFailed,
		Symbol:   trade.Symbol,
		Action:   trade.Action,
		Quantity: trade.Quantity,
		Price:    trade.Price,
		Error:    msg,
	})
	return fmt.Errorf("submit order %s: %w", trade.ID, cause)
}

// notify is fire-and-forget: notifier errors are logged, never
// propagated into the trade flow.
func (o *Orchestrator) notify(ctx context.Context, ev model.Event) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, ev); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Str("symbol", ev.Symbol).
			Msg("notification failed")
	}
}

func (o *Orchestrator) publishTrade(ctx context.Context, trade *model.Trade) {
	if o.feed == nil {
		return
	}
	cp := *trade
	err := o.feed.Publish(ctx, model.Change{
		Kind:   model.ChangeTrade,
		Symbol: trade.Symbol,
		Ts:     time.Now(),
		Trade:  &cp,
	})
	if err != nil {
		log.Error().Err(err).Str("id", trade.ID).Msg("trade change publish failed")
	}
}
