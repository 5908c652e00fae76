package storage

import (
	"fmt"
	"io"

	"tradepilot/internal/application/port"
	"tradepilot/internal/infrastructure/storage/memory"
	"tradepilot/internal/infrastructure/storage/postgres"
	"tradepilot/internal/infrastructure/storage/sqlite"
)

// Stores bundles the ledger and position store backed by one database.
type Stores struct {
	Ledger    port.TradeLedger
	Positions port.PositionStore

	closer io.Closer
}

func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open selects the backing store by driver name. "memory" keeps
// nothing across restarts and exists for tests and dry runs.
func Open(driver, dsn string) (*Stores, error) {
	switch driver {
	case "sqlite", "":
		repo, err := sqlite.New(dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &Stores{
			Ledger:    sqlite.NewTradeRepo(repo.GetDB()),
			Positions: sqlite.NewPositionRepo(repo.GetDB()),
			closer:    repo,
		}, nil
	case "postgres":
		repo, err := postgres.New(dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &Stores{
			Ledger:    postgres.NewTradeRepo(repo.GetDB()),
			Positions: postgres.NewPositionRepo(repo.GetDB()),
			closer:    repo,
		}, nil
	case "memory":
		return &Stores{
			Ledger:    memory.NewTradeLedger(),
			Positions: memory.NewPositionStore(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
