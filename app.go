package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"field-review/backend/internal/attendance"
	"field-review/backend/internal/cache"
	"field-review/backend/internal/catalog"
	"field-review/backend/internal/config"
	"field-review/backend/internal/database"
	"field-review/backend/internal/ledger"
	"field-review/backend/internal/middleware"
	"field-review/backend/internal/monitoring"
	"field-review/backend/internal/repositories"
	"field-review/backend/internal/router"
	"field-review/backend/internal/services"
	"field-review/backend/internal/session"
	"field-review/backend/internal/verification"
	"field-review/backend/internal/worker"

	log "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// App owns every long-lived component of the server.
type App struct {
	cfg     *config.Config
	logger  *log.Logger
	server  *http.Server
	pool    *database.DatabasePool
	redis   *cache.RedisCache
	worker  *worker.Worker
	limiter *middleware.RateLimiter
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New()

	level, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.IsProduction() {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}

	tasks, err := catalog.LoadTasks(cfg.Catalog.TasksPath)
	if err != nil {
		return nil, err
	}
	users, err := catalog.LoadCredentials(cfg.Catalog.UsersPath)
	if err != nil {
		return nil, err
	}
	creds, err := session.NewCredentialStore(users, cfg.Auth.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	logger.WithFields(log.Fields{"tasks": len(tasks), "users": creds.Len()}).Info("catalog loaded")

	poolConfig := database.DefaultPoolConfig()
	poolConfig.DSN = cfg.GetDatabaseDSN()
	poolConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	poolConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	poolConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	poolConfig.LogLevel = gormlogger.Warn
	if cfg.IsProduction() {
		poolConfig.LogLevel = gormlogger.Error
	}

	app.pool, err = database.NewDatabasePool(poolConfig)
	if err != nil {
		return nil, err
	}
	if err := repositories.Migrate(app.pool.DB); err != nil {
		app.Close()
		return nil, err
	}

	reviews := repositories.NewReviewRepository(app.pool.DB)
	records := repositories.NewAttendanceRepository(app.pool.DB)
	jobHandlers := &worker.ArchiveHandlers{
		Reviews:    reviews,
		Attendance: records,
		Notifier:   worker.LogNotifier{Logger: logger},
	}

	var (
		slot      session.Slot = session.NewMemorySlot()
		queue     services.Enqueuer
		redisSlot *cache.SessionSlot
		jobQueue  *worker.JobQueue
	)
	if cfg.Redis.Enabled {
		if rc := connectRedis(ctx, cfg, logger); rc != nil {
			app.redis = rc
			redisSlot = cache.NewSessionSlot(rc, cfg.Session.SlotKey, cache.NewCircuitBreaker(&cache.CircuitBreakerConfig{
				MaxFailures: cfg.Session.BreakerFailures,
				Cooldown:    cfg.Session.BreakerCooldown,
			}), logger)
			slot = redisSlot

			jobQueue = worker.NewJobQueue(rc.Client(), cfg.Worker.Queue)
			queue = jobQueue
			app.worker = worker.NewWorker(worker.WorkerConfig{
				RedisClient: rc.Client(),
				Queues:      []string{cfg.Worker.Queue},
				PollTimeout: cfg.Worker.PollTimeout,
				JobTimeout:  cfg.Worker.JobTimeout,
				RetryBase:   cfg.Worker.RetryBase,
				Logger:      logger,
			})
			jobHandlers.Register(app.worker)
		}
	}

	store := session.NewStore(creds, slot, logger)
	if err := store.Restore(ctx); err != nil {
		logger.WithError(err).Warn("could not restore persisted session")
	}

	oracle := verification.NewRandomOracle(
		verification.WithDelay(cfg.Verification.ScanDelay),
		verification.WithSuccessRate(cfg.Verification.SuccessRate),
	)
	gate := verification.NewGate(oracle, store, logger)
	archiver := services.NewQueueArchiver(queue, jobHandlers, logger)
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)

	monitor := monitoring.NewMonitor()
	monitor.RegisterHealthCheck("database", func(ctx context.Context) error { return app.pool.Health() })
	monitor.RegisterCollector("database", func() interface{} { return app.pool.Stats() })
	if app.redis != nil {
		monitor.RegisterHealthCheck("redis", app.redis.Health)
		monitor.RegisterCollector("cache", func() interface{} { return app.redis.Stats() })
		monitor.RegisterCollector("session_breaker", func() interface{} { return redisSlot.Breaker().Stats() })
		monitor.RegisterCollector("queue", queueCollector(jobQueue))
	}

	if cfg.RateLimit.Enabled {
		app.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, 10*time.Minute)
	}

	engine := router.New(router.Dependencies{
		Auth:  services.NewAuthService(store, tokens, gate, archiver, logger),
		Tasks: services.NewTaskService(ledger.New(tasks), reviews, archiver, logger),
		Attendance: services.NewAttendanceService(
			attendance.NewRegister(attendance.WithLocation(cfg.Location())),
			records,
			archiver,
			logger,
		),
		Monitor:     monitor,
		Limiter:     app.limiter,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	app.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

// queueCollector reports the archive backlog. A failed count is reported as
// -1 rather than failing the metrics response.
func queueCollector(q *worker.JobQueue) monitoring.Collector {
	return func() interface{} {
		ctx := context.Background()
		pending, err := q.Size(ctx)
		if err != nil {
			pending = -1
		}
		dead, err := q.DeadSize(ctx)
		if err != nil {
			dead = -1
		}
		return map[string]int64{"pending": pending, "dead": dead}
	}
}

// connectRedis returns nil when redis cannot be reached; the server then runs
// with an in-memory session slot and inline archiving.
func connectRedis(ctx context.Context, cfg *config.Config, logger *log.Logger) *cache.RedisCache {
	cacheConfig := cache.DefaultCacheConfig()
	cacheConfig.Addr = cfg.GetRedisAddr()
	cacheConfig.Password = cfg.Redis.Password
	cacheConfig.DB = cfg.Redis.DB
	cacheConfig.PoolSize = cfg.Redis.PoolSize
	cacheConfig.MinIdleConns = cfg.Redis.MinIdleConns
	cacheConfig.MaxRetries = cfg.Redis.MaxRetries
	cacheConfig.DialTimeout = cfg.Redis.DialTimeout
	cacheConfig.ReadTimeout = cfg.Redis.ReadTimeout
	cacheConfig.WriteTimeout = cfg.Redis.WriteTimeout

	rc := cache.NewRedisCache(cacheConfig)
	if err := rc.Health(ctx); err != nil {
		logger.WithError(err).WithField("addr", cacheConfig.Addr).Warn("redis unavailable, continuing without it")
		_ = rc.Close()
		return nil
	}
	return rc
}

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (a *App) Run(ctx context.Context) error {
	if a.worker != nil {
		a.worker.Start(ctx, a.cfg.Worker.Concurrency)
	}
	if a.limiter != nil {
		go a.limiter.Run(ctx, a.cfg.RateLimit.CleanupInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", a.server.Addr).Info("server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close redis")
		}
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close database pool")
		}
	}
}
