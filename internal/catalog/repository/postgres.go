package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"product-catalog/internal/catalog"
)

const healthCheckTimeout = 2 * time.Second

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var (
		p         catalog.Product
		updatedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt, &updatedAt); err != nil {
		return catalog.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		p.UpdatedAt = &t
	}
	return p, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]catalog.Product, error) {
	query := `
		SELECT id, name, price, description, created_at, updated_at
		FROM products
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	list := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return list, nil
}

func (r *PostgresRepository) FindPage(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	query := `
		SELECT id, name, price, description, created_at, updated_at
		FROM products
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query products page: %w", err)
	}
	defer rows.Close()

	list := make([]catalog.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return list, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (catalog.Product, error) {
	query := `
		SELECT id, name, price, description, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("select product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) Persist(ctx context.Context, p *catalog.Product) error {
	if !p.Persisted() {
		return r.insert(ctx, p)
	}
	return r.update(ctx, p)
}

func (r *PostgresRepository) insert(ctx context.Context, p *catalog.Product) error {
	query := `
		INSERT INTO products (name, price, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Price, p.Description, p.CreatedAt, nullTime(p.UpdatedAt),
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *PostgresRepository) update(ctx context.Context, p *catalog.Product) error {
	query := `
		UPDATE products
		SET name = $2, price = $3, description = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.Description, nullTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
