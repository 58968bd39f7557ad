package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botforge/flowengine/internal/domain"
)

// ProductRepository resolves shop products for invoice issuance.
type ProductRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewProductRepository creates a SQL-backed product repository.
func NewProductRepository(db *sql.DB, log *slog.Logger) *ProductRepository {
	return &ProductRepository{db: db, log: log}
}

// ByID fetches one product, or nil when absent.
func (r *ProductRepository) ByID(ctx context.Context, id string) (*domain.Product, error) {
	const query = `
		SELECT id, bot_id, name, COALESCE(description, ''), price, currency
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.BotID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if r.log != nil {
			r.log.Error("failed to fetch product", slog.String("product_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	return &product, nil
}
