// Package postgres persists internship listings in a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for listing rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ListingStore writes listing rows into Postgres.
type ListingStore struct {
	pool  txPool
	ids   internship.IDGenerator
	table string
}

// NewListingStore connects to Postgres and creates the listing table if it is missing.
func NewListingStore(ctx context.Context, cfg Config, ids internship.IDGenerator) (*ListingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &ListingStore{pool: pool, ids: ids, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewListingStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewListingStoreWithPool(pool txPool, table string, ids internship.IDGenerator) (*ListingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ListingStore{pool: pool, ids: ids, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = internship.DefaultCollection
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the listing table when it does not exist.
func (s *ListingStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	organization TEXT NOT NULL,
	description TEXT NOT NULL,
	location TEXT NOT NULL,
	skills_required TEXT NOT NULL,
	duration TEXT NOT NULL,
	stipend TEXT NOT NULL,
	image_url TEXT NOT NULL,
	company_logo TEXT NOT NULL,
	scraped_at_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// InsertListings inserts every listing in one transaction and returns the new row IDs.
func (s *ListingStore) InsertListings(ctx context.Context, listings []internship.Listing) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("listing store is not configured")
	}
	if len(listings) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(listings))
	for range listings {
		id, err := s.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate listing id: %w", err)
		}
		ids = append(ids, id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	title,
	organization,
	description,
	location,
	skills_required,
	duration,
	stipend,
	image_url,
	company_logo,
	scraped_at_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, s.table)

	for i, listing := range listings {
		if _, err := tx.Exec(ctx, query, rowArgs(ids[i], listing)...); err != nil {
			return nil, rollback(ctx, tx, fmt.Errorf("insert listing %d: %w", i, err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit listings: %w", err)
	}
	return ids, nil
}

func rowArgs(id string, listing internship.Listing) []any {
	return []any{
		id,
		listing.Title,
		listing.Organization,
		listing.Description,
		listing.Location,
		listing.SkillsRequired,
		listing.Duration,
		listing.Stipend,
		listing.ImageURL,
		listing.CompanyLogo,
		listing.Timestamp,
	}
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}
