package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

// ErrClosed is returned by a ListingStore after Close.
var ErrClosed = errors.New("memory listing store closed")

// ListingStore keeps inserted listings keyed by generated document ID.
type ListingStore struct {
	mu     sync.RWMutex
	ids    internship.IDGenerator
	docs   map[string]internship.Listing
	order  []string
	closed bool
}

// NewListingStore builds a store that names documents with ids.
func NewListingStore(ids internship.IDGenerator) *ListingStore {
	return &ListingStore{
		ids:  ids,
		docs: make(map[string]internship.Listing),
	}
}

// InsertListings stores every listing or none of them.
func (s *ListingStore) InsertListings(_ context.Context, listings []internship.Listing) ([]string, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(listings))
	for range listings {
		id, err := s.ids.NewID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	for i, listing := range listings {
		s.docs[ids[i]] = listing
		s.order = append(s.order, ids[i])
	}
	return ids, nil
}

// Listings returns the stored listings in insertion order.
func (s *ListingStore) Listings() []internship.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]internship.Listing, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}

// Get returns the listing stored under id.
func (s *ListingStore) Get(id string) (internship.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.docs[id]
	return listing, ok
}

// Close marks the store closed.
func (s *ListingStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
