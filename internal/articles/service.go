// Package articles serves article documents through the keyed cache so that
// prefetch warm-ups and page requests share the same entries.
package articles

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/apperr"
	"github.com/JakeFAU/newsroom-edge/internal/cache"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// Service is the cache-first article reader.
type Service struct {
	store  site.ArticleStore
	cache  *cache.Cache[site.Article]
	depth  int
	logger *zap.Logger
}

// New constructs a Service. depth is passed to the store on every load.
func New(store site.ArticleStore, entries *cache.Cache[site.Article], depth int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		cache:  entries,
		depth:  depth,
		logger: logger.Named("articles"),
	}
}

// Get returns the article for slug, loading it on a miss. The cache key is
// the slug itself.
func (s *Service) Get(ctx context.Context, slug string) (site.Article, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return site.Article{}, apperr.Validation("article slug is required")
	}
	article, err := s.cache.Get(ctx, slug, func(loadCtx context.Context) (site.Article, error) {
		s.logger.Debug("loading article", zap.String("slug", slug), zap.Int("depth", s.depth))
		a, err := s.store.ArticleBySlug(loadCtx, slug, s.depth)
		if err != nil {
			return site.Article{}, fmt.Errorf("article by slug: %w", err)
		}
		return a, nil
	})
	if err != nil {
		return site.Article{}, err
	}
	return article, nil
}

// Warm loads slug into the cache without returning it. An entry that is
// already fresh or in flight is not fetched again.
func (s *Service) Warm(ctx context.Context, slug string) error {
	if _, err := s.Get(ctx, slug); err != nil {
		return fmt.Errorf("warm %q: %w", slug, err)
	}
	return nil
}

// Cached reports whether slug currently has a fresh entry.
func (s *Service) Cached(slug string) bool {
	_, ok := s.cache.Peek(slug)
	return ok
}
