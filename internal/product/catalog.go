package product

import (
	"context"

	"go.uber.org/zap"
)

const (
	DefaultTrendingLimit = 4
	DefaultCategoryLimit = 8
)

// Catalog serves the storefront's product reads. Fetch failures are logged and
// answered with empty results; they never reach the shopper as errors.
type Catalog struct {
	src    Source
	logger *zap.Logger
}

func NewCatalog(src Source, logger *zap.Logger) *Catalog {
	return &Catalog{src: src, logger: logger}
}

// Trending returns the newest products first.
func (c *Catalog) Trending(ctx context.Context, limit int) []WithStatus {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	ps, err := c.src.Fetch(ctx, Query{
		Table:      TableProducts,
		OrderBy:    "created_at",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		c.logger.Error("fetch trending products", zap.Int("limit", limit), zap.Error(err))
		return []WithStatus{}
	}
	return CalculateStatuses(ps)
}

func (c *Catalog) ByID(ctx context.Context, id string) (WithStatus, bool) {
	if id == "" {
		return WithStatus{}, false
	}
	ps, err := c.src.Fetch(ctx, Query{
		Table:   TableProducts,
		Filters: []Filter{{Column: "id", Value: id}},
		Limit:   1,
	})
	if err != nil {
		c.logger.Error("fetch product", zap.String("product_id", id), zap.Error(err))
		return WithStatus{}, false
	}
	if len(ps) == 0 {
		return WithStatus{}, false
	}
	return CalculateStatus(ps[0]), true
}

func (c *Catalog) ByCategory(ctx context.Context, categoryID string, limit int) []WithStatus {
	if limit <= 0 {
		limit = DefaultCategoryLimit
	}
	ps, err := c.src.Fetch(ctx, Query{
		Table:   TableProducts,
		Filters: []Filter{{Column: "category_id", Value: categoryID}},
		Limit:   limit,
	})
	if err != nil {
		c.logger.Error("fetch products by category", zap.String("category_id", categoryID), zap.Error(err))
		return []WithStatus{}
	}
	return CalculateStatuses(ps)
}
