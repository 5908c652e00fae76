package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/application/service"
	"tradepilot/internal/domain/model"
	strategy "tradepilot/internal/domain/service"
	"tradepilot/internal/infrastructure/changefeed"
	"tradepilot/internal/infrastructure/config"
	"tradepilot/internal/infrastructure/exchange"
	"tradepilot/internal/infrastructure/exchange/binance"
	"tradepilot/internal/infrastructure/logger"
	"tradepilot/internal/infrastructure/notify"
	"tradepilot/internal/infrastructure/storage"
	"tradepilot/internal/interfaces/console"
	"tradepilot/internal/interfaces/httpapi"
)

func main() {
	logger.Setup("")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	creds, err := config.LoadCredentials()
	if err != nil {
		log.Fatal().Err(err).Msg("load credentials failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// storage (ledger + position store behind one database)
	dsn := cfg.Storage.DSN
	if cfg.Storage.Driver == "sqlite" {
		dsn = cfg.Storage.Path
	}
	stores, err := storage.Open(cfg.Storage.Driver, dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage failed")
	}
	defer stores.Close()

	// change feed (console always; redis stream when enabled)
	var redisFeed port.ChangeFeed
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		redisFeed = changefeed.NewRedisFeed(rdb, cfg.Redis.Prefix, 24*time.Hour)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis change feed enabled")
	}
	feed := changefeed.NewComposite(console.NewFeed(), redisFeed)

	var notifier port.Notifier = notify.NoopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	}

	// exchange clients
	pairs := exchange.NewQuotePairConverter(cfg.Exchange.Binance.Quote)
	orderAPI := binance.NewAPIClient(creds.BinanceAPIKey, creds.BinanceAPISecret,
		cfg.Exchange.Binance.OrderURL, time.Duration(cfg.Exchange.Binance.OrderTimeoutSec)*time.Second)
	gateway := binance.NewOrderClient(orderAPI, pairs)
	tickers := binance.NewTickerClient(cfg.Exchange.Binance.RestURL, cfg.Symbols.List, pairs, 10*time.Second)

	// market view: REST snapshots overlaid with live websocket prices
	market := service.NewMarketService(tickers)
	wsFeed := binance.NewTickerFeed(cfg.Exchange.Binance.WsURL, pairs)
	go func() {
		if err := market.Watch(ctx, wsFeed, cfg.Symbols.List); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("price feed exited")
		}
	}()

	book := service.NewPositionBook(stores.Positions, feed)
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Ledger:       stores.Ledger,
		Book:         book,
		Gateway:      gateway,
		Market:       market,
		Strategy:     strategy.NewMomentum(),
		Guard:        strategy.NewRiskGuard(),
		Notifier:     notifier,
		Feed:         feed,
		OrderTimeout: time.Duration(cfg.Exchange.Binance.OrderTimeoutSec) * time.Second,
	})

	// repair the position book before taking any new decisions
	reconciler := service.NewReconciler(stores.Ledger, book)
	if replayed, err := reconciler.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup reconciliation failed")
	} else if replayed > 0 {
		log.Warn().Int("fills", replayed).Msg("startup reconciliation replayed fills")
	}

	strategyCfg := model.StrategyConfig{
		MaxPositionValue: cfg.Trading.MaxPositionValue,
		WatchedSymbols:   cfg.Symbols.List,
		AlgorithmEnabled: cfg.Trading.AlgorithmEnabled,
	}

	srv := httpapi.NewServer(cfg.App.ListenAddr, stores.Ledger, book, market, orchestrator, strategyCfg)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("http api exited")
			stop()
		}
	}()

	log.Info().
		Str("config", *configPath).
		Int("symbols", len(cfg.Symbols.List)).
		Int("evaluate_every_min", cfg.App.EvaluateEveryMin).
		Bool("algorithm_enabled", cfg.Trading.AlgorithmEnabled).
		Msg("tradepilot started")

	runLoop(ctx, orchestrator, reconciler, strategyCfg, time.Duration(cfg.App.EvaluateEveryMin)*time.Minute)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("tradepilot stopped")
}

// runLoop drives periodic evaluation until the context is cancelled.
// Each tick also runs a reconciliation pass, so a fill that failed to
// reach the book is repaired within one interval.
func runLoop(ctx context.Context, orchestrator *service.Orchestrator, reconciler *service.Reconciler,
	cfg model.StrategyConfig, every time.Duration) {

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	if err := orchestrator.RunEvaluationCycle(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("evaluation cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if replayed, err := reconciler.Run(ctx); err != nil {
				log.Error().Err(err).Msg("reconciliation failed")
			} else if replayed > 0 {
				log.Warn().Int("fills", replayed).Msg("reconciliation replayed fills")
			}
			if err := orchestrator.RunEvaluationCycle(ctx, cfg); err != nil {
				log.Error().Err(err).Msg("evaluation cycle failed")
			}
		}
	}
}
