package internship

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns raw HTML into listings.
type Extractor interface {
	Extract(body []byte) ([]Listing, error)
}

// ListingStore persists a batch of listings atomically and returns the generated
// document identifiers in input order.
type ListingStore interface {
	InsertListings(ctx context.Context, listings []Listing) ([]string, error)
	Close() error
}

// StoreProvider hands out the process-wide ListingStore, opening it on first use.
type StoreProvider interface {
	Store(ctx context.Context) (ListingStore, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces document IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// HeadlessDetector decides whether a fetched page needs a headless render.
type HeadlessDetector interface {
	ShouldPromote(resp FetchResponse) bool
}

// Hasher produces content digests for snapshot paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Limiter paces outbound requests to a URL's host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether a failed fetch attempt is repeated and after how long.
type RetryPolicy interface {
	Next(err error, attempt int) (time.Duration, bool)
}
