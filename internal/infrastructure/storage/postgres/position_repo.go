package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
)

type PositionRepo struct {
	db *sql.DB
}

func NewPositionRepo(db *sql.DB) *PositionRepo {
	return &PositionRepo{db: db}
}

func (pr *PositionRepo) Get(ctx context.Context, symbol string) (*model.Position, error) {
	row := pr.db.QueryRowContext(ctx, `
		SELECT symbol, quantity, avg_price, updated_at FROM positions WHERE symbol = $1
	`, symbol)

	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

func (pr *PositionRepo) Upsert(ctx context.Context, pos *model.Position) error {
	_, err := pr.db.ExecContext(ctx, `
		INSERT INTO positions(symbol, quantity, avg_price, updated_at)
		VALUES($1, $2, $3, $4)
		ON CONFLICT(symbol) DO UPDATE SET
		quantity=excluded.quantity, avg_price=excluded.avg_price, updated_at=excluded.updated_at
	`, pos.Symbol, pos.Quantity, pos.AvgPrice, pos.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func (pr *PositionRepo) Delete(ctx context.Context, symbol string) error {
	_, err := pr.db.ExecContext(ctx, `DELETE FROM positions WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

func (pr *PositionRepo) List(ctx context.Context) ([]*model.Position, error) {
	rows, err := pr.db.QueryContext(ctx, `
		SELECT symbol, quantity, avg_price, updated_at FROM positions ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []*model.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("list positions: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func scanPosition(row rowScanner) (*model.Position, error) {
	var (
		pos       model.Position
		updatedAt int64
	)
	if err := row.Scan(&pos.Symbol, &pos.Quantity, &pos.AvgPrice, &updatedAt); err != nil {
		return nil, err
	}
	pos.UpdatedAt = time.UnixMilli(updatedAt)
	return &pos, nil
}

var _ port.PositionStore = (*PositionRepo)(nil)
