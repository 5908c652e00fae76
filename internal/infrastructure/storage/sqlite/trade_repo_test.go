package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tradepilot/internal/domain/model"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create repo failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func proposal(symbol string) model.TradeProposal {
	return model.TradeProposal{
		Symbol:     symbol,
		Action:     model.ActionBuy,
		Quantity:   0.016667,
		Price:      60000,
		Confidence: 40,
		Reason:     "Price dropped 4.00% - potential rebound opportunity",
	}
}

func TestTradeRepoInsertAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	tr, err := ledger.Insert(ctx, proposal("BTC"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if tr.ID == "" {
		t.Fatal("expected generated trade ID")
	}
	if tr.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", tr.Status)
	}

	got, err := ledger.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Symbol != "BTC" || got.Quantity != 0.016667 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestTradeRepoDuplicateActive(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	first, err := ledger.Insert(ctx, proposal("BTC"))
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	// second active trade on the same symbol must be refused
	if _, err := ledger.Insert(ctx, proposal("BTC")); !errors.Is(err, model.ErrDuplicateActiveTrade) {
		t.Fatalf("expected ErrDuplicateActiveTrade, got %v", err)
	}

	// an approved trade still blocks new proposals
	if _, err := ledger.Approve(ctx, first.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := ledger.Insert(ctx, proposal("BTC")); !errors.Is(err, model.ErrDuplicateActiveTrade) {
		t.Fatalf("expected ErrDuplicateActiveTrade after approve, got %v", err)
	}

	// other symbols are unaffected
	if _, err := ledger.Insert(ctx, proposal("ETH")); err != nil {
		t.Fatalf("insert other symbol failed: %v", err)
	}
}

func TestTradeRepoTerminalFreesSymbol(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	tr, err := ledger.Insert(ctx, proposal("BTC"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := ledger.Reject(ctx, tr.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if _, err := ledger.Insert(ctx, proposal("BTC")); err != nil {
		t.Fatalf("insert after reject failed: %v", err)
	}
}

func TestTradeRepoConcurrentInsertSingleWinner(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	const racers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Insert(ctx, proposal("BTC")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, model.ErrDuplicateActiveTrade) {
				t.Errorf("unexpected insert error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one insert winner, got %d", wins)
	}
	pending, err := ledger.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending trade after race, got %d", len(pending))
	}
}

func TestTradeRepoApproveExclusivity(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	tr, err := ledger.Insert(ctx, proposal("BTC"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Approve(ctx, tr.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, model.ErrInvalidTransition) {
				t.Errorf("unexpected approve error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one approval winner, got %d", wins)
	}
}

func TestTradeRepoMarkExecutedIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	tr, err := ledger.Insert(ctx, proposal("BTC"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := ledger.Approve(ctx, tr.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	executedAt := time.Now()
	if err := ledger.MarkExecuted(ctx, tr.ID, "ord-1", 59990, 0.016667, executedAt); err != nil {
		t.Fatalf("mark executed failed: %v", err)
	}

	// replay of the same fill is a no-op
	if err := ledger.MarkExecuted(ctx, tr.ID, "ord-1", 59990, 0.016667, executedAt); err != nil {
		t.Fatalf("replayed mark executed failed: %v", err)
	}

	// a different order ID on an already-executed trade is a violation
	if err := ledger.MarkExecuted(ctx, tr.ID, "ord-2", 59990, 0.016667, executedAt); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, err := ledger.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != model.StatusExecuted || got.ExchangeOrderID != "ord-1" {
		t.Errorf("unexpected trade after execute: %+v", got)
	}
	if got.ExecutedAt.UnixMilli() != executedAt.UnixMilli() {
		t.Errorf("executed_at mismatch: %v vs %v", got.ExecutedAt, executedAt)
	}
}

func TestTradeRepoInvalidTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	tr, err := ledger.Insert(ctx, proposal("BTC"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// pending trades cannot be executed or failed directly
	if err := ledger.MarkExecuted(ctx, tr.ID, "ord-1", 1, 1, time.Now()); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for execute from pending, got %v", err)
	}
	if err := ledger.MarkFailed(ctx, tr.ID, "boom"); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for fail from pending, got %v", err)
	}

	if _, err := ledger.Reject(ctx, tr.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := ledger.Approve(ctx, tr.ID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition approving rejected trade, got %v", err)
	}

	if _, err := ledger.Get(ctx, "missing"); !errors.Is(err, model.ErrTradeNotFound) {
		t.Errorf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestTradeRepoListings(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewTradeRepo(repo.GetDB())
	ctx := context.Background()

	btc, _ := ledger.Insert(ctx, proposal("BTC"))
	eth, _ := ledger.Insert(ctx, proposal("ETH"))
	sol, _ := ledger.Insert(ctx, proposal("SOL"))

	pending, err := ledger.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}

	if _, err := ledger.Approve(ctx, btc.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := ledger.MarkExecuted(ctx, btc.ID, "ord-1", 60000, 0.016667, time.Now()); err != nil {
		t.Fatalf("mark executed failed: %v", err)
	}
	if _, err := ledger.Reject(ctx, eth.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	pending, _ = ledger.ListPending(ctx)
	if len(pending) != 1 || pending[0].ID != sol.ID {
		t.Fatalf("expected only SOL pending, got %+v", pending)
	}

	history, err := ledger.ListHistory(ctx, 10)
	if err != nil {
		t.Fatalf("list history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}

	executed, err := ledger.ListExecuted(ctx)
	if err != nil {
		t.Fatalf("list executed failed: %v", err)
	}
	if len(executed) != 1 || executed[0].ID != btc.ID {
		t.Fatalf("expected only BTC executed, got %+v", executed)
	}
}

func TestPositionRepoUpsertAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	store := NewPositionRepo(repo.GetDB())
	ctx := context.Background()

	pos, err := store.Get(ctx, "BTC")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if pos != nil {
		t.Fatal("expected nil position for unknown symbol")
	}

	now := time.Now()
	if err := store.Upsert(ctx, &model.Position{Symbol: "BTC", Quantity: 0.5, AvgPrice: 60000, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &model.Position{Symbol: "BTC", Quantity: 1.0, AvgPrice: 55000, UpdatedAt: now}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	pos, err = store.Get(ctx, "BTC")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if pos == nil || pos.Quantity != 1.0 || pos.AvgPrice != 55000 {
		t.Fatalf("unexpected position: %+v", pos)
	}

	if err := store.Upsert(ctx, &model.Position{Symbol: "ETH", Quantity: 2, AvgPrice: 3000, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(all))
	}

	if err := store.Delete(ctx, "BTC"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	pos, err = store.Get(ctx, "BTC")
	if err != nil {
		t.Fatalf("get after delete failed: %v", err)
	}
	if pos != nil {
		t.Fatal("expected position gone after delete")
	}
}
