package site

import (
	"context"
	"time"
)

// ArticleStore reads articles from the document store.
type ArticleStore interface {
	FindArticles(ctx context.Context, query ArticleQuery) ([]Article, error)
	ArticleBySlug(ctx context.Context, slug string, depth int) (Article, error)
}

// VideoStore reads videos and maintains their view counters.
type VideoStore interface {
	GetVideo(ctx context.Context, id string, depth int) (Video, error)
	// IncrementViews adds exactly one to the video's view counter and returns
	// the new value. It returns ErrNotFound without side effects when the
	// video does not exist.
	IncrementViews(ctx context.Context, id string) (int64, error)
}

// CategoryStore lists categories.
type CategoryStore interface {
	ListCategories(ctx context.Context, limit int) ([]Category, error)
}

// DocumentStore is the full CMS collaborator.
type DocumentStore interface {
	ArticleStore
	VideoStore
	CategoryStore
}

// Queue provides enqueue/dequeue semantics for prefetch messages.
type Queue interface {
	Enqueue(ctx context.Context, item PrefetchRequest) error
	// TryEnqueue never blocks; it returns ErrQueueFull when there is no room.
	TryEnqueue(item PrefetchRequest) error
	Dequeue(ctx context.Context) (PrefetchRequest, error)
}

// Publisher pushes event payloads to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests used for ETags.
type Hasher interface {
	Hash(data []byte) (string, error)
	// ETag returns a quoted strong entity tag for data.
	ETag(data []byte) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces message IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Timer is a scheduled callback that can be canceled.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already
	// fired or was stopped.
	Stop() bool
}

// Scheduler runs callbacks after a delay on another goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}
