// Package storage holds the lazily opened listing store shared by all scrapes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

// Opener connects to a listing store backend.
type Opener func(ctx context.Context) (internship.ListingStore, error)

// ErrClosed is returned by Store after Close.
var ErrClosed = errors.New("listing store handle closed")

// Lazy opens the backend on first use. Concurrent first calls share one open; a failed
// open is not cached, so the next call tries again.
type Lazy struct {
	open Opener

	mu     sync.Mutex
	store  internship.ListingStore
	closed bool
}

// NewLazy wraps open.
func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

// Store returns the open store, connecting if necessary.
func (l *Lazy) Store(ctx context.Context) (internship.ListingStore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.store != nil {
		return l.store, nil
	}
	store, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open listing store: %w", err)
	}
	l.store = store
	return store, nil
}

// Opened reports whether a store has been opened.
func (l *Lazy) Opened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store != nil
}

// Close closes the store if it was opened. Later Store calls fail.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
