// Package footer assembles the site footer from categories and the most
// recent articles.
package footer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/newsroom-edge/internal/cache"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

const cacheKey = "footer"

// Source is the slice of the document store the footer reads.
type Source interface {
	site.ArticleStore
	site.CategoryStore
}

// Config controls how much the footer lists.
type Config struct {
	CategoryLimit int
	RecentLimit   int
}

// Aggregator loads the footer. Failures never reach the caller; they yield
// the empty default footer instead.
type Aggregator struct {
	src    Source
	cache  *cache.Cache[site.Footer]
	cfg    Config
	logger *zap.Logger
}

// New constructs an Aggregator. entries may be nil to disable caching.
func New(src Source, entries *cache.Cache[site.Footer], cfg Config, logger *zap.Logger) *Aggregator {
	if cfg.CategoryLimit <= 0 {
		cfg.CategoryLimit = 10
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{src: src, cache: entries, cfg: cfg, logger: logger.Named("footer")}
}

// Empty is the footer rendered when either lookup fails.
func Empty() site.Footer {
	return site.Footer{Categories: []site.Category{}, RecentArticles: []site.Article{}}
}

// Load fetches categories and recent articles concurrently.
func (a *Aggregator) Load(ctx context.Context) site.Footer {
	var (
		f   site.Footer
		err error
	)
	if a.cache != nil {
		f, err = a.cache.Get(ctx, cacheKey, a.fetch)
	} else {
		f, err = a.fetch(ctx)
	}
	if err != nil {
		a.logger.Error("footer load failed, serving empty footer", zap.Error(err))
		return Empty()
	}
	return f
}

func (a *Aggregator) fetch(ctx context.Context) (site.Footer, error) {
	var (
		categories []site.Category
		recent     []site.Article
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = a.src.ListCategories(gctx, a.cfg.CategoryLimit)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = a.src.FindArticles(gctx, site.ArticleQuery{
			Limit: a.cfg.RecentLimit,
			Page:  1,
			Depth: 0,
			Sort:  site.SortNewest,
		})
		if err != nil {
			return fmt.Errorf("recent articles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return site.Footer{}, err
	}
	if categories == nil {
		categories = []site.Category{}
	}
	if recent == nil {
		recent = []site.Article{}
	}
	return site.Footer{Categories: categories, RecentArticles: recent}, nil
}
