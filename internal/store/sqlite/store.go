// Package sqlite implements the document store on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JakeFAU/newsroom-edge/internal/media"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/slug"
)

//go:embed schema.sql
var schema string

// SchemaVersion is stored in PRAGMA user_version once the schema is applied.
// Bump it when adding migrations.
const SchemaVersion = 1

// Store implements site.DocumentStore.
type Store struct {
	db *sql.DB
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	// Pragmas in the DSN apply to every pooled connection.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers so view increments never see SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Migrate applies the schema unless user_version says it is current.
func (s *Store) Migrate(ctx context.Context) error {
	version, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	if version >= SchemaVersion {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// Import writes every document in one transaction. Existing rows with the
// same key are replaced.
func (s *Store) Import(ctx context.Context, articles []site.Article, videos []site.Video, categories []site.Category) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, a := range articles {
		if err = putArticle(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, v := range videos {
		if err = putVideo(ctx, tx, v); err != nil {
			return err
		}
	}
	for _, c := range categories {
		if err = putCategory(ctx, tx, c); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// PutArticle inserts or replaces an article. A missing slug is derived from
// the title.
func (s *Store) PutArticle(ctx context.Context, a site.Article) error {
	return putArticle(ctx, s.db, a)
}

// PutVideo inserts or replaces a video keyed by ID.
func (s *Store) PutVideo(ctx context.Context, v site.Video) error {
	return putVideo(ctx, s.db, v)
}

// PutCategory inserts or replaces a category keyed by ID.
func (s *Store) PutCategory(ctx context.Context, c site.Category) error {
	return putCategory(ctx, s.db, c)
}

func putArticle(ctx context.Context, ex execer, a site.Article) error {
	if a.Slug == "" {
		a.Slug = slug.Slugify(a.Title)
	}
	if a.Slug == "" {
		return fmt.Errorf("article %q has no slug or title", a.ID)
	}
	if a.ID == "" {
		a.ID = a.Slug
	}
	heroID, err := putMedia(ctx, ex, a.HeroImage)
	if err != nil {
		return err
	}
	var sections sql.NullString
	if len(a.Sections) > 0 {
		data, err := json.Marshal(a.Sections)
		if err != nil {
			return fmt.Errorf("encode sections for %s: %w", a.Slug, err)
		}
		sections = sql.NullString{String: string(data), Valid: true}
	}
	_, err = ex.ExecContext(ctx, `
INSERT OR REPLACE INTO articles (id, slug, title, excerpt, category, published_at, hero_media_id, sections)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Slug, a.Title, a.Excerpt, a.Category, a.PublishedAt.UnixMilli(), heroID, sections,
	)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", a.Slug, err)
	}
	return nil
}

func putVideo(ctx context.Context, ex execer, v site.Video) error {
	if v.ID == "" {
		return errors.New("video id is required")
	}
	if v.Slug == "" {
		v.Slug = slug.Slugify(v.Title)
	}
	thumbID, err := putMedia(ctx, ex, v.Thumbnail)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
INSERT OR REPLACE INTO videos (id, slug, title, views, published_at, thumbnail_media_id)
VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Slug, v.Title, max(v.Views, 0), v.PublishedAt.UnixMilli(), thumbID,
	)
	if err != nil {
		return fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	return nil
}

func putCategory(ctx context.Context, ex execer, c site.Category) error {
	if c.ID == "" {
		return errors.New("category id is required")
	}
	if c.Slug == "" {
		c.Slug = slug.Slugify(c.Name)
	}
	_, err := ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO categories (id, slug, name) VALUES (?, ?, ?)`,
		c.ID, c.Slug, c.Name,
	)
	if err != nil {
		return fmt.Errorf("insert category %s: %w", c.ID, err)
	}
	return nil
}

// putMedia stores a populated media object and returns the ID to reference.
func putMedia(ctx context.Context, ex execer, ref media.Reference) (sql.NullString, error) {
	switch ref.Kind() {
	case media.KindOpaqueID:
		return sql.NullString{String: ref.ID(), Valid: true}, nil
	case media.KindResolved:
	default:
		return sql.NullString{}, nil
	}
	obj, _ := ref.Object()
	if obj.ID == "" {
		return sql.NullString{}, errors.New("media object has no id")
	}
	var sizes sql.NullString
	if len(obj.Sizes) > 0 {
		data, err := json.Marshal(obj.Sizes)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("encode media sizes for %s: %w", obj.ID, err)
		}
		sizes = sql.NullString{String: string(data), Valid: true}
	}
	_, err := ex.ExecContext(ctx, `
INSERT OR REPLACE INTO media (id, url, alt, caption, width, height, sizes)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obj.ID, obj.URL, obj.Alt, obj.Caption, nullInt(obj.Width), nullInt(obj.Height), sizes,
	)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("insert media %s: %w", obj.ID, err)
	}
	return sql.NullString{String: obj.ID, Valid: true}, nil
}

const articleColumns = `
SELECT a.id, a.slug, a.title, a.excerpt, a.category, a.published_at, a.sections,
       a.hero_media_id, m.id, m.url, m.alt, m.caption, m.width, m.height, m.sizes
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
		sb.WriteString("\nWHERE lower(a.category) = lower(?)")
		args = append(args, q.Category)
	}
	if q.Sort == site.SortOldest {
		sb.WriteString("\nORDER BY a.published_at ASC, a.slug ASC")
	} else {
		sb.WriteString("\nORDER BY a.published_at DESC, a.slug ASC")
	}
	if q.Limit > 0 {
		page := max(q.Page, 1)
		sb.WriteString("\nLIMIT ? OFFSET ?")
		args = append(args, q.Limit, (page-1)*q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

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
func (s *Store) ArticleBySlug(ctx context.Context, articleSlug string, depth int) (site.Article, error) {
	row := s.db.QueryRowContext(ctx, articleColumns+"\nWHERE a.slug = ?", articleSlug)
	a, err := scanArticle(row, depth)
	if errors.Is(err, sql.ErrNoRows) {
		return site.Article{}, fmt.Errorf("article %q: %w", articleSlug, site.ErrNotFound)
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
       v.thumbnail_media_id, m.id, m.url, m.alt, m.caption, m.width, m.height, m.sizes
FROM videos v
LEFT JOIN media m ON m.id = v.thumbnail_media_id
WHERE v.id = ?`

	var (
		v         site.Video
		published int64
		mc        mediaColumns
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.Slug, &v.Title, &v.Views, &published,
		&mc.ref, &mc.id, &mc.url, &mc.alt, &mc.caption, &mc.width, &mc.height, &mc.sizes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return site.Video{}, fmt.Errorf("video %q: %w", id, site.ErrNotFound)
	}
	if err != nil {
		return site.Video{}, fmt.Errorf("scan video: %w", err)
	}
	v.PublishedAt = fromMillis(published)
	ref, err := mc.reference(depth)
	if err != nil {
		return site.Video{}, err
	}
	v.Thumbnail = ref
	return v, nil
}

// IncrementViews adds one view in a single statement.
func (s *Store) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE videos SET views = views + 1 WHERE id = ? RETURNING views`, id,
	).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
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
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

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

// mediaColumns holds the referencing column (ref) and the joined media row.
type mediaColumns struct {
	ref, id, url, alt, caption, sizes sql.NullString
	width, height                     sql.NullInt64
}

// reference honors depth: 0 keeps only the ID, as does a dangling ID whose
// media row is missing.
func (mc mediaColumns) reference(depth int) (media.Reference, error) {
	if !mc.ref.Valid || mc.ref.String == "" {
		return media.Absent(), nil
	}
	if depth <= 0 || !mc.id.Valid {
		return media.OpaqueID(mc.ref.String), nil
	}
	obj := media.Object{
		ID:      mc.id.String,
		URL:     mc.url.String,
		Alt:     mc.alt.String,
		Caption: mc.caption.String,
		Width:   intPtr(mc.width),
		Height:  intPtr(mc.height),
	}
	if mc.sizes.Valid && mc.sizes.String != "" {
		if err := json.Unmarshal([]byte(mc.sizes.String), &obj.Sizes); err != nil {
			return media.Reference{}, fmt.Errorf("decode media sizes for %s: %w", mc.id.String, err)
		}
	}
	return media.Resolved(obj), nil
}

func scanArticle(row scanner, depth int) (site.Article, error) {
	var (
		a         site.Article
		published int64
		sections  sql.NullString
		mc        mediaColumns
	)
	err := row.Scan(
		&a.ID, &a.Slug, &a.Title, &a.Excerpt, &a.Category, &published, &sections,
		&mc.ref, &mc.id, &mc.url, &mc.alt, &mc.caption, &mc.width, &mc.height, &mc.sizes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return site.Article{}, err
	}
	if err != nil {
		return site.Article{}, fmt.Errorf("scan article: %w", err)
	}
	a.PublishedAt = fromMillis(published)
	if sections.Valid && sections.String != "" {
		if err := json.Unmarshal([]byte(sections.String), &a.Sections); err != nil {
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

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
