// Package postgres implements the document store on Postgres.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/newsroom-edge/internal/media"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

//go:embed schema.sql
var schema string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements site.DocumentStore.
type Store struct {
	pool Pool
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool (primarily for testing).
func NewWithPool(pool Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const articleColumns = `
SELECT a.id, a.slug, a.title, a.excerpt, a.category, a.published_at, a.sections,
       m.id, m.url, m.alt, m.caption, m.width, m.height, m.sizes
FROM articles a
LEFT JOIN media m ON m.id = a.hero_media_id`

// FindArticles lists articles for a category page or feed.
func (s *Store) FindArticles(ctx context.Context, q site.ArticleQuery) ([]site.Article, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(articleColumns)
	if q.Category != "" {
		args = append(args, q.Category)
		fmt.Fprintf(&sb, "\nWHERE lower(a.category) = lower($%d)", len(args))
	}
	if q.Sort == site.SortOldest {
		sb.WriteString("\nORDER BY a.published_at ASC, a.slug ASC")
	} else {
		sb.WriteString("\nORDER BY a.published_at DESC, a.slug ASC")
	}
	if q.Limit > 0 {
		page := max(q.Page, 1)
		args = append(args, q.Limit, (page-1)*q.Limit)
		fmt.Fprintf(&sb, "\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	out := []site.Article{}
	for rows.Next() {
		a, err := scanArticle(rows, q.Depth)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// ArticleBySlug returns one article.
func (s *Store) ArticleBySlug(ctx context.Context, slug string, depth int) (site.Article, error) {
	row := s.pool.QueryRow(ctx, articleColumns+"\nWHERE a.slug = $1", slug)
	a, err := scanArticle(row, depth)
	if errors.Is(err, pgx.ErrNoRows) {
		return site.Article{}, fmt.Errorf("article %q: %w", slug, site.ErrNotFound)
	}
	if err != nil {
		return site.Article{}, err
	}
	return a, nil
}

// GetVideo returns one video.
func (s *Store) GetVideo(ctx context.Context, id string, depth int) (site.Video, error) {
	const query = `
SELECT v.id, v.slug, v.title, v.views, v.published_at,
       m.id, m.url, m.alt, m.caption, m.width, m.height, m.sizes
FROM videos v
LEFT JOIN media m ON m.id = v.thumbnail_media_id
WHERE v.id = $1`

	var (
		v  site.Video
		mc mediaColumns
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.Slug, &v.Title, &v.Views, &v.PublishedAt,
		&mc.id, &mc.url, &mc.alt, &mc.caption, &mc.width, &mc.height, &mc.sizes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return site.Video{}, fmt.Errorf("video %q: %w", id, site.ErrNotFound)
	}
	if err != nil {
		return site.Video{}, fmt.Errorf("scan video: %w", err)
	}
	ref, err := mc.reference(depth)
	if err != nil {
		return site.Video{}, err
	}
	v.Thumbnail = ref
	return v, nil
}

// IncrementViews adds one view in a single statement so concurrent calls
// never lose an update.
func (s *Store) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := s.pool.QueryRow(ctx,
		`UPDATE videos SET views = views + 1 WHERE id = $1 RETURNING views`, id,
	).Scan(&views)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("video %q: %w", id, site.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(ctx context.Context, limit int) ([]site.Category, error) {
	query := `SELECT id, slug, name FROM categories ORDER BY name, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []site.Category{}
	for rows.Next() {
		var c site.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

type mediaColumns struct {
	id, url, alt, caption *string
	width, height         *int32
	sizes                 []byte
}

// reference builds the media reference honoring depth: 0 keeps only the ID.
func (mc mediaColumns) reference(depth int) (media.Reference, error) {
	if mc.id == nil || *mc.id == "" {
		return media.Absent(), nil
	}
	if depth <= 0 {
		return media.OpaqueID(*mc.id), nil
	}
	obj := media.Object{
		ID:      *mc.id,
		URL:     deref(mc.url),
		Alt:     deref(mc.alt),
		Caption: deref(mc.caption),
		Width:   intPtr(mc.width),
		Height:  intPtr(mc.height),
	}
	if len(mc.sizes) > 0 {
		if err := json.Unmarshal(mc.sizes, &obj.Sizes); err != nil {
			return media.Reference{}, fmt.Errorf("decode media sizes for %s: %w", *mc.id, err)
		}
	}
	return media.Resolved(obj), nil
}

func scanArticle(row pgx.Row, depth int) (site.Article, error) {
	var (
		a        site.Article
		sections []byte
		mc       mediaColumns
	)
	err := row.Scan(
		&a.ID, &a.Slug, &a.Title, &a.Excerpt, &a.Category, &a.PublishedAt, &sections,
		&mc.id, &mc.url, &mc.alt, &mc.caption, &mc.width, &mc.height, &mc.sizes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return site.Article{}, err
	}
	if err != nil {
		return site.Article{}, fmt.Errorf("scan article: %w", err)
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &a.Sections); err != nil {
			return site.Article{}, fmt.Errorf("decode sections for %s: %w", a.Slug, err)
		}
	}
	ref, err := mc.reference(depth)
	if err != nil {
		return site.Article{}, err
	}
	a.HeroImage = ref
	return a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
