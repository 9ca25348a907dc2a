// Package site defines the content types and collaborator interfaces shared
// across the service.
package site

import (
	"errors"
	"time"

	"github.com/JakeFAU/newsroom-edge/internal/media"
)

// ErrNotFound is returned by stores when a document does not exist.
var ErrNotFound = errors.New("not found")

// ErrQueueFull is returned by non-blocking enqueue when the buffer is full.
var ErrQueueFull = errors.New("queue full")

// ErrQueueClosed is returned by queues after shutdown.
var ErrQueueClosed = errors.New("queue closed")

// Section is one headed block of an article body.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Article is a published story.
type Article struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Excerpt     string          `json:"excerpt,omitempty"`
	Category    string          `json:"category,omitempty"`
	PublishedAt time.Time       `json:"publishedAt"`
	HeroImage   media.Reference `json:"heroImage"`
	Sections    []Section       `json:"sections,omitempty"`
}

// Video is a video document with its view counter.
type Video struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug,omitempty"`
	Title       string          `json:"title"`
	Views       int64           `json:"views"`
	PublishedAt time.Time       `json:"publishedAt"`
	Thumbnail   media.Reference `json:"thumbnail"`
}

// Category groups articles.
type Category struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Footer is the aggregate rendered at the bottom of every page.
type Footer struct {
	Categories     []Category `json:"categories"`
	RecentArticles []Article  `json:"recentArticles"`
}

// SortOrder orders article listings by publication time.
type SortOrder string

// Supported sort orders.
const (
	SortNewest SortOrder = "-publishedAt"
	SortOldest SortOrder = "publishedAt"
)

// ArticleQuery filters and paginates FindArticles. Depth controls relation
// population: 0 leaves media as opaque IDs, 1 or more resolves them.
type ArticleQuery struct {
	Category string
	Limit    int
	Page     int
	Depth    int
	Sort     SortOrder
}

// Signal is the user-intent signal that triggered a prefetch.
type Signal string

// Supported prefetch signals.
const (
	SignalHover Signal = "hover"
	SignalTouch Signal = "touch"
)

// PrefetchRequest is the message sent to the background warmers. Key is the
// cache key and always equals the article slug.
type PrefetchRequest struct {
	ID        string
	Key       string
	Signal    Signal
	Requested time.Time
}
