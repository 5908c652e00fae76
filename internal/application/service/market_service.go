package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

// MarketService is a port.MarketData that overlays live feed prices on
// the latest REST snapshot. The 24h fields come from the snapshot
// provider; the price is replaced when the feed has seen a newer one.
type MarketService struct {
	provider port.MarketData

	mu   sync.RWMutex
	live map[string]port.Tick
}

func NewMarketService(provider port.MarketData) *MarketService {
	return &MarketService{
		provider: provider,
		live:     make(map[string]port.Tick),
	}
}

// Watch consumes feed ticks until ctx is done. Safe to run alongside
// GetSnapshot callers.
func (s *MarketService) Watch(ctx context.Context, feed port.PriceFeed, coins []string) error {
	ticks, err := feed.Subscribe(ctx, coins)
	if err != nil {
		return err
	}
	go func() {
		for tick := range ticks {
			if tick.PriceNum <= 0 {
				continue
			}
			s.mu.Lock()
			s.live[tick.Symbol] = tick
			s.mu.Unlock()
		}
		log.Info().Str("feed", feed.Name()).Msg("price feed closed")
	}()
	return nil
}

func (s *MarketService) GetSnapshot(ctx context.Context) (map[string]model.MarketSnapshot, error) {
	snapshot, err := s.provider.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for sym, snap := range snapshot {
		tick, ok := s.live[sym]
		if !ok {
			continue
		}
		ts := time.UnixMilli(tick.Ts)
		if ts.After(snap.UpdatedAt) {
			snap.Price = tick.PriceNum
			snap.UpdatedAt = ts
			snapshot[sym] = snap
		}
	}
	return snapshot, nil
}

var _ port.MarketData = (*MarketService)(nil)
