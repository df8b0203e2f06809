package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/fieldsales/internal/client"
	"github.com/utafrali/fieldsales/internal/config"
	handler "github.com/utafrali/fieldsales/internal/handler/http"
	"github.com/utafrali/fieldsales/internal/session"
	"github.com/utafrali/fieldsales/internal/tokenstore"
	"github.com/utafrali/fieldsales/internal/tokenstore/file"
	"github.com/utafrali/fieldsales/internal/tokenstore/memory"
	redisstore "github.com/utafrali/fieldsales/internal/tokenstore/redis"
	"github.com/utafrali/fieldsales/internal/visit"
	"github.com/utafrali/fieldsales/pkg/database"
	"github.com/utafrali/fieldsales/pkg/health"
	"github.com/utafrali/fieldsales/pkg/httpclient"
	"github.com/utafrali/fieldsales/pkg/tracing"
)

const serviceName = "fieldsales"

// Option customizes NewApp.
type Option func(*options)

type options struct {
	sessionOpts []session.Option
	backend     tokenstore.Backend
	doer        client.HTTPDoer
}

// WithSessionOptions forwards options to the session, for example an
// offline login strategy.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// WithTokenBackend replaces the configured credential backend.
func WithTokenBackend(b tokenstore.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithHTTPDoer replaces the breaker-wrapped HTTP client.
func WithHTTPDoer(d client.HTTPDoer) Option {
	return func(o *options) { o.doer = d }
}

// App wires together all dependencies of the CLI and the console server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	api            *client.Client
	session        *session.Session
	pipeline       *visit.Pipeline
	health         *health.Handler
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
	cancel         context.CancelFunc
}

// NewApp creates a new application instance and restores the persisted
// session. The returned App must be closed with Shutdown.
func NewApp(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	traceCfg := tracing.DefaultConfig(serviceName)
	traceCfg.Environment = cfg.Environment
	traceCfg.OTLPEndpoint = cfg.OTELEndpoint
	traceCfg.SampleRate = cfg.OTELSampleRate
	traceCfg.Enabled = cfg.OTELEnabled
	traceCfg.Insecure = cfg.Environment == "development"
	shutdownTracer, err := tracing.InitTracer(ctx, traceCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, shutdownTracer: shutdownTracer}

	backend := o.backend
	if backend == nil {
		backend, err = a.openBackend(ctx)
		if err != nil {
			_ = shutdownTracer(context.Background())
			return nil, err
		}
	}

	var breaker *httpclient.CircuitBreakerClient
	doer := o.doer
	if doer == nil {
		breaker = newBackendClient(cfg, logger)
		doer = breaker
	}

	// Build the dependency graph.
	a.api = client.New(doer, cfg.APIBase(), logger)
	store := tokenstore.New(backend, logger)
	validator := session.NewValidator(a.api, logger, cfg.RevalidateTimeout)
	a.session = session.New(store, validator, a.api, logger, o.sessionOpts...)

	passes := make([]visit.Pass, len(cfg.PhotoMaxDimensions))
	for i := range passes {
		passes[i] = visit.Pass{MaxDimension: cfg.PhotoMaxDimensions[i], Quality: cfg.PhotoQualities[i]}
	}
	a.pipeline = visit.NewPipeline(a.api, visit.NewCompressor(passes, cfg.PhotoTargetBytes), logger)

	// Health checks.
	a.health = health.NewHandler()
	a.health.RegisterCritical("token_store", func(ctx context.Context) error {
		_, _, err := backend.Get(ctx, tokenstore.KeyToken)
		return err
	})
	a.health.RegisterNonCritical("backend_api", a.api.Ping)
	if breaker != nil {
		a.health.RegisterNonCritical("backend_breaker", breaker.Checker())
	}
	if a.rdb != nil {
		a.health.RegisterCritical("redis", database.RedisChecker(a.rdb))
	}

	snap := a.session.Init(ctx)
	logger.Info("session restored",
		slog.String("state", snap.State.String()),
		slog.String("store", cfg.TokenStore),
	)

	// Router-owned background work stops when the app shuts down.
	runCtx, runCancel := context.WithCancel(context.Background())
	a.cancel = runCancel

	router := handler.NewRouter(runCtx, a.session, a.pipeline, a.health, logger, handler.RouterConfig{
		LoginRPS:            cfg.ConsoleLoginRPS,
		LoginBurst:          cfg.ConsoleLoginBurst,
		SubmitSafetyTimeout: cfg.SubmitSafetyTimeout,
	})

	a.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ConsolePort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Visit uploads include compression and a single slow POST.
		WriteTimeout: cfg.HTTPTimeout + cfg.SubmitSafetyTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) openBackend(ctx context.Context) (tokenstore.Backend, error) {
	switch a.cfg.TokenStore {
	case config.StoreMemory:
		return memory.New(), nil

	case config.StoreRedis:
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Host = a.cfg.RedisHost
		redisCfg.Port = a.cfg.RedisPort
		redisCfg.Password = a.cfg.RedisPassword
		redisCfg.DB = a.cfg.RedisDB
		rdb, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		database.SetSlowCommandLogging(a.cfg.RedisSlowThreshold, a.logger)
		a.logger.Info("connected to Redis",
			slog.String("addr", redisCfg.Addr()),
			slog.Int("db", redisCfg.DB),
		)
		return redisstore.New(rdb, a.cfg.RedisKeyPrefix, a.cfg.RedisTTL), nil

	default:
		dir, err := a.cfg.TokenDirectory()
		if err != nil {
			return nil, fmt.Errorf("resolve token directory: %w", err)
		}
		var fileOpts []file.Option
		if a.cfg.TokenAgeIdentity != "" {
			id, err := file.LoadIdentity(a.cfg.TokenAgeIdentity)
			if err != nil {
				return nil, fmt.Errorf("load age identity: %w", err)
			}
			fileOpts = append(fileOpts, file.WithIdentity(id))
		}
		b, err := file.New(dir, fileOpts...)
		if err != nil {
			return nil, fmt.Errorf("open token directory: %w", err)
		}
		a.logger.Debug("using file token store",
			slog.String("dir", dir),
			slog.Bool("sealed", b.Sealed()),
		)
		return b, nil
	}
}

func newBackendClient(cfg *config.Config, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	httpCfg.MaxRetries = cfg.HTTPMaxRetries
	httpCfg.RetryWaitMin = cfg.RetryWaitMin
	httpCfg.RetryWaitMax = cfg.RetryWaitMax

	cbCfg := httpclient.DefaultCircuitBreakerConfig("backend-api")
	cbCfg.MaxRequests = cfg.CBMaxRequests
	cbCfg.Interval = cfg.CBInterval
	cbCfg.Timeout = cfg.CBTimeout
	cbCfg.FailureRatio = cfg.CBFailureRatio
	cbCfg.MinRequests = cfg.CBMinRequests

	return httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), cbCfg, logger)
}

// Session returns the authenticated session.
func (a *App) Session() *session.Session { return a.session }

// Pipeline returns the visit submission pipeline.
func (a *App) Pipeline() *visit.Pipeline { return a.pipeline }

// Health returns the health handler.
func (a *App) Health() *health.Handler { return a.health }

// Handler returns the console HTTP handler.
func (a *App) Handler() http.Handler { return a.httpServer.Handler }

// Run starts the console server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting console server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("api", a.cfg.APIBase()),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. Pending background session
// refreshes are awaited before the credential backend closes.
func (a *App) Shutdown() error {
	a.logger.Debug("shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.cancel()

	a.session.Wait()

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Debug("application shutdown complete")
	return nil
}
