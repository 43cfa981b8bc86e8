package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/anthanhphan/go-resumable-upload/internal/upload/adapter/inbound/http"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/adapter/outbound/localfs"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/adapter/outbound/postgres"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/adapter/outbound/redisstore"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/adapter/outbound/s3store"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/config"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/domain"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/metrics"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/policy"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/service"
	"github.com/anthanhphan/go-resumable-upload/pkg/idgen"
	"github.com/anthanhphan/go-resumable-upload/pkg/resilience"
	"github.com/anthanhphan/go-resumable-upload/pkg/vault"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const csrfTokenTTL = 12 * time.Hour

type App struct {
	cfg     *config.Config
	db      *sql.DB
	redis   *redis.Client
	service *service.UploadServiceImpl
	server  *httpHandler.Server
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 3. Postgres
	db, err := postgres.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	// 4. Redis, shared by admission, locks and the snowflake clock
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	a := &App{cfg: cfg, db: db, redis: redisClient}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	idGen, err := idgen.New(cfg.App.NodeID, idgen.NewRedisClock(a.redis, 0))
	if err != nil {
		return fmt.Errorf("failed to init snowflake: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	v, err := vault.New([]byte(cfg.Vault.MasterKey), []byte(cfg.Vault.LegacyKey))
	if err != nil {
		return fmt.Errorf("failed to init vault: %w", err)
	}
	csrf, err := policy.NewCSRF(cfg.Policy.CSRFSecret, csrfTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to init csrf: %w", err)
	}
	extensions, err := policy.NewExtensionPolicy(cfg.Policy.ExtensionMode, cfg.Policy.Extensions)
	if err != nil {
		return fmt.Errorf("failed to init extension policy: %w", err)
	}

	staging, err := localfs.NewStagingStore(cfg.Storage.StagingDir, true)
	if err != nil {
		return fmt.Errorf("failed to init staging: %w", err)
	}
	permanent, err := newPermanentStore(ctx, cfg.Storage, m)
	if err != nil {
		return err
	}

	a.service = service.NewUploadService(cfg, service.Dependencies{
		Sessions:   postgres.NewSessionRepository(a.db),
		Files:      postgres.NewFileRepository(a.db),
		Staging:    staging,
		Permanent:  permanent,
		Admission:  redisstore.NewAdmissionStore(a.redis),
		Locker:     redisstore.NewSessionLocker(a.redis, cfg.Upload.LockTTL(), cfg.Upload.LockWait()),
		Vault:      v,
		Hasher:     vault.NewHasher(vault.DefaultHashParams),
		CSRF:       csrf,
		Extensions: extensions,
		Keyer:      policy.NewHMACKeyer(cfg.Policy.IdentitySalt),
		IDs:        idGen,
		Metrics:    m,
	})

	a.server = httpHandler.NewServer(cfg, a.service, httpHandler.Options{
		Issuer:   csrf,
		Gatherer: registry,
		Metrics:  m,
	})
	return nil
}

func newPermanentStore(ctx context.Context, cfg config.StorageConfig, m *metrics.Metrics) (port.PermanentStore, error) {
	switch cfg.Backend {
	case "", "local":
		store, err := localfs.NewFileStore(cfg.PermanentDir)
		if err != nil {
			return nil, fmt.Errorf("failed to init file store: %w", err)
		}
		return store, nil
	case "s3":
		store, err := s3store.New(ctx, cfg.S3, func(name string, from, to resilience.CircuitBreakerState) {
			logger.Warnw("Object store circuit changed", "name", name, "from", string(from), "to", string(to))
			m.RecordCircuitState(name, to == resilience.CircuitOpen)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Migrate applies the schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	return postgres.RunMigrations(ctx, a.db)
}

// ReclaimOnce runs a single sweep over expired sessions.
func (a *App) ReclaimOnce(ctx context.Context) (domain.ReclaimStats, error) {
	return a.service.ReclaimExpired(ctx, time.Now())
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if interval := a.cfg.Reclaim.IntervalSeconds; interval > 0 {
		go runReclaimLoop(ctx, a.service, time.Duration(interval)*time.Second)
	}

	// Start HTTP
	logger.Infow("Upload server starting", "addr", a.cfg.Server.Addr, "base_path", a.cfg.Server.BasePath)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Upload server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down upload services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		logger.Errorw("Upload server shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

func (a *App) Close() error {
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
