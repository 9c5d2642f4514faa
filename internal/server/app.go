// Package server builds the scraper's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/pm-internship-scraper/internal/api"
	"github.com/JakeFAU/pm-internship-scraper/internal/clock/system"
	"github.com/JakeFAU/pm-internship-scraper/internal/config"
	"github.com/JakeFAU/pm-internship-scraper/internal/extract"
	collyfetcher "github.com/JakeFAU/pm-internship-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/pm-internship-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/pm-internship-scraper/internal/hash/sha256"
	"github.com/JakeFAU/pm-internship-scraper/internal/headless/detector"
	"github.com/JakeFAU/pm-internship-scraper/internal/id/uuid"
	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
	"github.com/JakeFAU/pm-internship-scraper/internal/logging"
	"github.com/JakeFAU/pm-internship-scraper/internal/pipeline"
	"github.com/JakeFAU/pm-internship-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/pm-internship-scraper/internal/policy/retry"
	gcppublisher "github.com/JakeFAU/pm-internship-scraper/internal/publisher/pubsub"
	liststorage "github.com/JakeFAU/pm-internship-scraper/internal/storage"
	fsstore "github.com/JakeFAU/pm-internship-scraper/internal/storage/firestore"
	gcsstorage "github.com/JakeFAU/pm-internship-scraper/internal/storage/gcs"
	memorystorage "github.com/JakeFAU/pm-internship-scraper/internal/storage/memory"
	mongostore "github.com/JakeFAU/pm-internship-scraper/internal/storage/mongo"
	pgstore "github.com/JakeFAU/pm-internship-scraper/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	stores    *liststorage.Lazy
	headless  *headlessfetcher.Fetcher
	storage   *storage.Client
	publisher *gcppublisher.Publisher
}

// Build creates the application's dependencies. Nothing is dialed here except the
// optional snapshot and notification clients; the listing store opens on first scrape.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("source", cfg.Source.URL),
		zap.String("mode", cfg.Source.Mode),
		zap.String("store", cfg.Store.Backend),
	)

	opener, err := openerFor(cfg, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	app.stores = liststorage.NewLazy(opener)

	snapshots, err := setupSnapshots(ctx, app)
	if err != nil {
		_ = app.closeInfrastructure()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		_ = app.closeInfrastructure()
		return nil, err
	}

	clock := system.New()
	deps := pipeline.Deps{
		Stores:    app.stores,
		Extractor: extract.New(clock),
		Snapshots: snapshots,
		Hasher:    sha256.New(),
		Publisher: publisher,
		Clock:     clock,
	}
	setupFetchers(app, &deps)

	p, err := pipeline.New(deps, pipeline.Config{
		SourceURL: cfg.Source.URL,
		Topic:     cfg.PubSub.Topic,
	}, logger.Named("pipeline"))
	if err != nil {
		_ = app.closeInfrastructure()
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}

	app.apiServer = api.NewServer(p, app.stores, api.Options{
		ProjectID:      cfg.Firebase.ProjectID,
		RequestTimeout: cfg.RequestTimeout(),
	}, logger.Named("api"))
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close()
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return closeErr
}

// Close releases every opened resource.
func (a *App) Close() error {
	err := a.closeInfrastructure()
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure() error {
	var errs []error
	if a.stores != nil {
		if err := a.stores.Close(); err != nil {
			a.logger.Warn("listing store close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setupFetchers(app *App, deps *pipeline.Deps) {
	src := app.cfg.Source
	if src.InsecureSkipVerify {
		app.logger.Warn("TLS certificate verification disabled for source fetches", zap.String("url", src.URL))
	}
	deps.Limiter = ratelimit.New(ratelimit.Config{RPS: src.RateLimitRPS, Burst: src.RateLimitBurst})
	deps.Retry = retry.NewExponential(retry.Config{MaxAttempts: src.MaxAttempts})
	httpFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:          src.UserAgent,
		Timeout:            app.cfg.FetchTimeout(),
		InsecureSkipVerify: src.InsecureSkipVerify,
	})
	if src.Mode == config.ModeHTTP {
		deps.Fetcher = httpFetcher
		return
	}

	app.headless = headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:          src.UserAgent,
		NavigationTimeout:  app.cfg.NavTimeout(),
		InsecureSkipVerify: src.InsecureSkipVerify,
	})
	if src.Mode == config.ModeHeadless {
		deps.Fetcher = app.headless
		return
	}
	deps.Fetcher = httpFetcher
	deps.Headless = app.headless
	deps.Detector = detector.NewHeuristic(src.PromotionThreshold)
}

// openerFor returns the connect function for the configured listing store.
func openerFor(cfg *config.Config, logger *zap.Logger) (liststorage.Opener, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		fsCfg := fsstore.Config{
			ProjectID:  cfg.Firebase.ProjectID,
			Collection: cfg.Store.Collection,
			Credentials: fsstore.Credentials{
				ProjectID:    cfg.Firebase.ProjectID,
				PrivateKeyID: cfg.Firebase.PrivateKeyID,
				PrivateKey:   cfg.Firebase.PrivateKey,
				ClientEmail:  cfg.Firebase.ClientEmail,
				ClientID:     cfg.Firebase.ClientID,
			},
		}
		return func(ctx context.Context) (internship.ListingStore, error) {
			store, err := fsstore.NewListingStore(ctx, fsCfg)
			if err != nil {
				return nil, err
			}
			logger.Info("firestore store opened",
				zap.String("project", cfg.Firebase.ProjectID),
				zap.Bool("service_account", fsCfg.Credentials.Complete()),
			)
			return store, nil
		}, nil
	case config.BackendPostgres:
		pgCfg := pgstore.Config{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: int32(cfg.Postgres.MaxConns), //nolint:gosec // Validate bounds max_conns to int32
		}
		return func(ctx context.Context) (internship.ListingStore, error) {
			store, err := pgstore.NewListingStore(ctx, pgCfg, uuid.New())
			if err != nil {
				return nil, err
			}
			logger.Info("postgres store opened", zap.String("table", cfg.Postgres.Table))
			return store, nil
		}, nil
	case config.BackendMongo:
		mCfg := mongostore.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Store.Collection,
		}
		return func(ctx context.Context) (internship.ListingStore, error) {
			store, err := mongostore.NewListingStore(ctx, mCfg)
			if err != nil {
				return nil, err
			}
			logger.Info("mongo store opened", zap.String("database", cfg.Mongo.Database))
			return store, nil
		}, nil
	case config.BackendMemory:
		return func(context.Context) (internship.ListingStore, error) {
			logger.Warn("using in-memory listing store; listings are lost on restart")
			return memorystorage.NewListingStore(uuid.New()), nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func setupSnapshots(ctx context.Context, app *App) (internship.BlobStore, error) {
	switch app.cfg.Snapshot.Backend {
	case config.BackendGCS:
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err := gcsstorage.New(app.storage, gcsstorage.Config{
			Bucket: app.cfg.Snapshot.Bucket,
			Prefix: app.cfg.Snapshot.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("archiving snapshots to GCS", zap.String("bucket", app.cfg.Snapshot.Bucket))
		return blobStore, nil
	case config.BackendMemory:
		app.logger.Info("archiving snapshots in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (internship.Publisher, error) {
	if app.cfg.PubSub.Topic == "" {
		app.logger.Info("no Pub/Sub topic configured, completion events disabled")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSubProject())
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(client)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSubProject()),
		zap.String("topic", app.cfg.PubSub.Topic),
	)
	return app.publisher, nil
}
