// Package memory provides an in-process document store, optionally seeded
// from a JSON file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/slug"
)

// Seed is the on-disk shape of a seed file.
type Seed struct {
	Articles   []site.Article  `json:"articles"`
	Videos     []site.Video    `json:"videos"`
	Categories []site.Category `json:"categories"`
}

// Store implements site.DocumentStore in memory.
type Store struct {
	mu         sync.RWMutex
	articles   map[string]site.Article
	videos     map[string]site.Video
	categories map[string]site.Category
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		articles:   make(map[string]site.Article),
		videos:     make(map[string]site.Video),
		categories: make(map[string]site.Category),
	}
}

// NewFromFile returns a Store seeded from the JSON file at path.
func NewFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	s := New()
	if err := s.Load(f); err != nil {
		return nil, fmt.Errorf("load seed %s: %w", path, err)
	}
	return s, nil
}

// DecodeSeed reads a Seed document from r.
func DecodeSeed(r io.Reader) (Seed, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// Load decodes a Seed from r and adds its documents.
func (s *Store) Load(r io.Reader) error {
	seed, err := DecodeSeed(r)
	if err != nil {
		return err
	}
	for _, a := range seed.Articles {
		if err := s.PutArticle(a); err != nil {
			return err
		}
	}
	for _, v := range seed.Videos {
		if err := s.PutVideo(v); err != nil {
			return err
		}
	}
	for _, c := range seed.Categories {
		if err := s.PutCategory(c); err != nil {
			return err
		}
	}
	return nil
}

// PutArticle inserts or replaces an article keyed by slug. A missing slug is
// derived from the title.
func (s *Store) PutArticle(a site.Article) error {
	if a.Slug == "" {
		a.Slug = slug.Slugify(a.Title)
	}
	if a.Slug == "" {
		return fmt.Errorf("article %q has no slug or title", a.ID)
	}
	s.mu.Lock()
	s.articles[a.Slug] = a
	s.mu.Unlock()
	return nil
}

// PutVideo inserts or replaces a video keyed by ID.
func (s *Store) PutVideo(v site.Video) error {
	if v.ID == "" {
		return fmt.Errorf("video id is required")
	}
	if v.Slug == "" {
		v.Slug = slug.Slugify(v.Title)
	}
	s.mu.Lock()
	s.videos[v.ID] = v
	s.mu.Unlock()
	return nil
}

// PutCategory inserts or replaces a category keyed by ID.
func (s *Store) PutCategory(c site.Category) error {
	if c.ID == "" {
		return fmt.Errorf("category id is required")
	}
	if c.Slug == "" {
		c.Slug = slug.Slugify(c.Name)
	}
	s.mu.Lock()
	s.categories[c.ID] = c
	s.mu.Unlock()
	return nil
}

// FindArticles filters by category slug, orders by publication time and
// returns the requested 1-based page. A non-positive limit returns every
// match.
func (s *Store) FindArticles(_ context.Context, q site.ArticleQuery) ([]site.Article, error) {
	s.mu.RLock()
	matches := make([]site.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if q.Category != "" && !strings.EqualFold(a.Category, q.Category) {
			continue
		}
		matches = append(matches, withDepth(a, q.Depth))
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			if q.Sort == site.SortOldest {
				return a.PublishedAt.Before(b.PublishedAt)
			}
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.Slug < b.Slug
	})

	if q.Limit <= 0 {
		return matches, nil
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * q.Limit
	if start >= len(matches) {
		return []site.Article{}, nil
	}
	end := min(start+q.Limit, len(matches))
	return matches[start:end], nil
}

// ArticleBySlug returns one article.
func (s *Store) ArticleBySlug(_ context.Context, articleSlug string, depth int) (site.Article, error) {
	s.mu.RLock()
	a, ok := s.articles[articleSlug]
	s.mu.RUnlock()
	if !ok {
		return site.Article{}, fmt.Errorf("article %q: %w", articleSlug, site.ErrNotFound)
	}
	return withDepth(a, depth), nil
}

// GetVideo returns one video.
func (s *Store) GetVideo(_ context.Context, id string, depth int) (site.Video, error) {
	s.mu.RLock()
	v, ok := s.videos[id]
	s.mu.RUnlock()
	if !ok {
		return site.Video{}, fmt.Errorf("video %q: %w", id, site.ErrNotFound)
	}
	if depth <= 0 {
		v.Thumbnail = v.Thumbnail.Unresolve()
	}
	return v, nil
}

// IncrementViews adds one view under the write lock.
func (s *Store) IncrementViews(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return 0, fmt.Errorf("video %q: %w", id, site.ErrNotFound)
	}
	v.Views++
	s.videos[id] = v
	return v.Views, nil
}

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(_ context.Context, limit int) ([]site.Category, error) {
	s.mu.RLock()
	out := make([]site.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func withDepth(a site.Article, depth int) site.Article {
	if depth <= 0 {
		a.HeroImage = a.HeroImage.Unresolve()
	}
	if a.Sections != nil {
		a.Sections = append([]site.Section(nil), a.Sections...)
	}
	return a
}
