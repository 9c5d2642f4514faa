package mongostore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

type fakeCollection struct {
	inserted []interface{}
	err      error
}

func (f *fakeCollection) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, docs...)
	return &mongo.InsertManyResult{}, nil
}

func directTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func TestInsertListingsInsertsAllInOneCall(t *testing.T) {
	t.Parallel()

	coll := &fakeCollection{}
	calls := 0
	store := &ListingStore{coll: coll, runTx: func(ctx context.Context, fn func(context.Context) error) error {
		calls++
		return fn(ctx)
	}}

	listings := []internship.Listing{
		internship.NewListing("Policy Research Intern", 1),
		internship.NewListing("PM Internship", 2),
	}
	ids, err := store.InsertListings(context.Background(), listings)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
	require.Equal(t, 1, calls)
	require.Len(t, coll.inserted, 2)

	doc := coll.inserted[0].(document)
	require.Equal(t, ids[0], doc.ID.Hex())
	require.Equal(t, listings[0], doc.Listing)
}

func TestInsertListingsPropagatesFailure(t *testing.T) {
	t.Parallel()

	store := &ListingStore{coll: &fakeCollection{err: errors.New("not primary")}, runTx: directTx}
	ids, err := store.InsertListings(context.Background(), []internship.Listing{internship.NewListing("Policy Intern", 1)})
	require.ErrorContains(t, err, "not primary")
	require.Nil(t, ids)
}

func TestInsertListingsEmptyBatchSkipsTransaction(t *testing.T) {
	t.Parallel()

	store := &ListingStore{coll: &fakeCollection{}, runTx: func(context.Context, func(context.Context) error) error {
		t.Fatal("transaction must not start for an empty batch")
		return nil
	}}
	ids, err := store.InsertListings(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestDocumentBSONShape(t *testing.T) {
	t.Parallel()

	docs, ids := toDocuments([]internship.Listing{internship.NewListing("Policy Research Intern", 42)})
	raw, err := bson.Marshal(docs[0])
	require.NoError(t, err)

	var decoded bson.M
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	require.Equal(t, "Policy Research Intern", decoded["title"])
	require.Equal(t, internship.SkillsRequired, decoded["skillsRequired"])
	require.Equal(t, internship.ImageURL, decoded["imageUrl"])
	require.Equal(t, int64(42), decoded["timestamp"])
	require.Contains(t, decoded, "_id")
	require.Len(t, ids, 1)
}

func TestNewListingStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewListingStore(context.Background(), Config{Database: "pm"})
	require.ErrorContains(t, err, "mongo.uri is required")
	_, err = NewListingStore(context.Background(), Config{URI: "mongodb://localhost:27017"})
	require.ErrorContains(t, err, "mongo.database is required")
}
