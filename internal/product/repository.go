package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const TableProducts = "products"

var ErrUnsupportedQuery = errors.New("unsupported product query")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Filter struct {
	Column string
	Value  any
}

// Query is the read contract of the hosted database: table, equality filters,
// ordering and limit.
type Query struct {
	Table      string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

type Source interface {
	Fetch(ctx context.Context, q Query) ([]Product, error)
}

// columns that may appear in a WHERE or ORDER BY clause
var queryableColumns = map[string]bool{
	"id":          true,
	"name":        true,
	"brand_id":    true,
	"category_id": true,
	"price":       true,
	"created_at":  true,
	"updated_at":  true,
}

const selectProductColumns = `id, name, description, price::text, stock, brand_id, category_id, images, discount_price::text, created_at, updated_at`

type PostgresSource struct {
	pool DBPool
}

func NewPostgresSource(pool DBPool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Fetch(ctx context.Context, q Query) ([]Product, error) {
	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
			&p.BrandID, &p.CategoryID, &p.Images, &p.DiscountPrice,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func buildSelect(q Query) (string, []any, error) {
	if q.Table != TableProducts {
		return "", nil, fmt.Errorf("%w: table %q", ErrUnsupportedQuery, q.Table)
	}

	var b strings.Builder
	args := make([]any, 0, len(q.Filters)+1)

	b.WriteString("SELECT ")
	b.WriteString(selectProductColumns)
	b.WriteString(" FROM ")
	b.WriteString(TableProducts)

	for i, f := range q.Filters {
		if !queryableColumns[f.Column] {
			return "", nil, fmt.Errorf("%w: filter column %q", ErrUnsupportedQuery, f.Column)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s = $%d", f.Column, len(args))
	}

	if q.OrderBy != "" {
		if !queryableColumns[q.OrderBy] {
			return "", nil, fmt.Errorf("%w: order column %q", ErrUnsupportedQuery, q.OrderBy)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
		if q.Descending {
			b.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args, nil
}
