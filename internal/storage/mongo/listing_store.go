// Package mongostore persists internship listings in a MongoDB collection.
package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

const connectTimeout = 10 * time.Second

// Config describes the Mongo deployment.
type Config struct {
	URI        string
	Database   string
	Collection string
}

type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// txRunner executes fn inside a transaction.
type txRunner func(ctx context.Context, fn func(context.Context) error) error

// ListingStore writes listings into a Mongo collection.
type ListingStore struct {
	client *mongo.Client
	coll   inserter
	runTx  txRunner
}

type document struct {
	ID                 primitive.ObjectID `bson:"_id"`
	internship.Listing `bson:",inline"`
}

// NewListingStore connects to Mongo and verifies the deployment is reachable.
func NewListingStore(ctx context.Context, cfg Config) (*ListingStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("mongo.uri is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("mongo.database is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = internship.DefaultCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &ListingStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		runTx:  sessionTx(client),
	}, nil
}

func sessionTx(client *mongo.Client) txRunner {
	return func(ctx context.Context, fn func(context.Context) error) error {
		session, err := client.StartSession()
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		defer session.EndSession(ctx)
		_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return nil, fn(sc)
		})
		return err
	}
}

// InsertListings inserts all listings in one transaction and returns their ObjectID hex strings.
func (s *ListingStore) InsertListings(ctx context.Context, listings []internship.Listing) ([]string, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	docs, ids := toDocuments(listings)
	err := s.runTx(ctx, func(txCtx context.Context) error {
		if _, err := s.coll.InsertMany(txCtx, docs); err != nil {
			return fmt.Errorf("insert listings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func toDocuments(listings []internship.Listing) ([]interface{}, []string) {
	docs := make([]interface{}, 0, len(listings))
	ids := make([]string, 0, len(listings))
	for _, listing := range listings {
		id := primitive.NewObjectID()
		docs = append(docs, document{ID: id, Listing: listing})
		ids = append(ids, id.Hex())
	}
	return docs, ids
}

// Close disconnects the client.
func (s *ListingStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
