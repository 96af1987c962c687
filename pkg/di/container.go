package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"companion-call-demo/backend/api"
	"companion-call-demo/backend/internal/call"
	"companion-call-demo/backend/internal/directory"
	"companion-call-demo/backend/internal/peer"
	"companion-call-demo/backend/internal/rooms"
	"companion-call-demo/backend/pkg/cache"
	"companion-call-demo/backend/pkg/config"
	"companion-call-demo/backend/pkg/health"
	"companion-call-demo/backend/pkg/logger"
	"companion-call-demo/backend/pkg/metrics"
	"companion-call-demo/backend/pkg/middleware"
	"companion-call-demo/backend/pkg/observability"
	"companion-call-demo/backend/pkg/redis"
	"companion-call-demo/backend/pkg/resilience"
	"companion-call-demo/backend/pkg/secrets"
	"companion-call-demo/backend/pkg/validator"
)

// Peer modes
const (
	PeerLoopback = "loopback"
	PeerWebRTC   = "webrtc"
)

// Container holds all the dependencies for the application
type Container struct {
	Config        *config.Config
	Logger        *logger.Logger
	Cache         *cache.Cache
	DB            *gorm.DB
	Redis         *redis.Client
	Secrets       secrets.Manager
	Directory     *directory.Directory
	Avatars       *peer.AvatarLoader
	Rooms         *rooms.Manager
	Metrics       *metrics.Metrics
	Observability *observability.Provider
	Health        *health.Checker
	RateLimiter   *middleware.RateLimiter
	Validator     *validator.OpenAPIValidator
}

// Options override pieces of the container, mainly for tests
type Options struct {
	// Store replaces the configured directory backend
	Store directory.Store
	// Peers replaces the configured peer mode
	Peers call.PeerFactory
	// TraceOutput receives spans when tracing is on; defaults to stdout
	TraceOutput io.Writer
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (_ *Container, err error) {
	if log == nil {
		log = logger.GetGlobal()
	}

	c := &Container{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			c.Close(context.Background())
		}
	}()

	if cfg.Cache.Enabled {
		c.Cache = cache.New(cache.Options{
			TTL:             cfg.Cache.TTL,
			CleanupInterval: cfg.Cache.PurgeWindow,
			MaxItems:        cfg.Cache.MaxSize,
		})
	}

	c.Secrets, err = newSecrets(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}

	store := opts.Store
	if store == nil {
		store, err = c.newStore(ctx)
		if err != nil {
			return nil, err
		}
	}
	c.Directory = directory.New(store, c.Cache, cfg.Directory.CacheTTL, log)

	c.Metrics = metrics.New()
	traceOut := opts.TraceOutput
	if traceOut == nil {
		traceOut = os.Stdout
	}
	c.Observability, err = observability.Setup(observability.Config{
		ServiceName: cfg.Observability.ServiceName,
		Tracing:     cfg.Observability.TracingEnabled,
		TraceOutput: traceOut,
		Registerer:  c.Metrics.Registry(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability: %w", err)
	}

	var claimer rooms.Claimer
	if cfg.Redis.URL != "" {
		c.Redis, err = redis.NewClient(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		claimer = rooms.NewRedisClaimer(c.Redis, cfg.Redis.RoomTTL)
	}

	c.Avatars = peer.NewAvatarLoader(&http.Client{}, cfg.Call.AvatarFetchTimeout, nil, log)
	peers := opts.Peers
	if peers == nil {
		peers, err = c.newPeerFactory(ctx)
		if err != nil {
			return nil, err
		}
	}

	c.Rooms = rooms.NewManager(rooms.Options{
		Claimer: claimer,
		Peers:   peers,
		Config:  call.ConfigFrom(cfg),
		Logger:  log,
		Metrics: c.Metrics,
	})

	c.RateLimiter = middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:     rate.Limit(cfg.Security.RateLimit),
		Burst:     cfg.Security.RateLimitBurst,
		OnLimited: c.Metrics.RateLimited,
	})

	c.Validator, err = validator.NewFromData(api.OpenAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	c.Health = health.NewChecker(log, 30*time.Second)
	c.registerChecks()

	return c, nil
}

func newSecrets(cfg *config.Config, log *logger.Logger) (secrets.Manager, error) {
	if !cfg.Vault.Enabled {
		return secrets.EnvManager{}, nil
	}
	vm, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		SecretsPath: cfg.Vault.SecretsPath,
	}, log)
	if err != nil {
		return nil, err
	}
	return vm, nil
}

// newStore opens the configured catalog backend
func (c *Container) newStore(ctx context.Context) (directory.Store, error) {
	cfg := c.Config
	switch cfg.Directory.Backend {
	case "", "static":
		return directory.NewStaticStore(directory.DefaultCatalog()), nil

	case "postgres":
		cfg.Database.Password = c.Secrets.GetSecretWithDefault(ctx, secrets.KeyDatabasePass, cfg.Database.Password)
		db, err := config.NewDB(cfg)
		if err != nil {
			return nil, err
		}
		c.DB = db

		store := directory.NewGormStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate companions: %w", err)
		}
		if err := store.Seed(ctx, directory.DefaultCatalog()); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
}

// newPeerFactory builds the per-call peer for the configured mode
func (c *Container) newPeerFactory(ctx context.Context) (call.PeerFactory, error) {
	cfg := c.Config
	feeds := peer.Feeds{Avatars: c.Avatars, FrameRate: cfg.Call.FrameRate}

	switch cfg.Call.PeerMode {
	case "", PeerLoopback:
		return func(context.Context, string) (call.RemotePeer, error) {
			return peer.NewLoopbackPeer(feeds), nil
		}, nil

	case PeerWebRTC:
		credential := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyTURNCredential, "")
		ice := peer.NewICEConfig(cfg.Call.STUNURLs, cfg.Call.TURNURLs, cfg.Call.TURNUsername, credential)
		log := c.Logger
		return func(_ context.Context, roomID string) (call.RemotePeer, error) {
			p, err := peer.NewWebRTCPeer(roomID, ice, feeds, log)
			if err != nil {
				return nil, err
			}
			return p, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown peer mode %q", cfg.Call.PeerMode)
}

func (c *Container) registerChecks() {
	c.Health.RegisterCheck("directory", true, func(ctx context.Context) (health.Status, string, error) {
		profiles, err := c.Directory.List(ctx)
		if err != nil {
			return health.StatusDown, "companion catalog unavailable", err
		}
		return health.StatusUp, fmt.Sprintf("%d companions", len(profiles)), nil
	})

	if c.Redis != nil {
		c.Health.RegisterCheck("redis", true, health.PingCheck("redis", c.Redis.Ping))
	}
	if c.DB != nil {
		c.Health.RegisterCheck("database", true, health.PingCheck("database", func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}))
	}
	if v, ok := c.Secrets.(*secrets.VaultManager); ok {
		c.Health.RegisterCheck("vault", false, health.PingCheck("vault", v.Ping))
	}

	breaker := c.Avatars.Breaker()
	c.Health.RegisterCheck("avatar-fetch", false, func(context.Context) (health.Status, string, error) {
		if breaker.State() == resilience.StateOpen {
			return health.StatusDegraded, "avatar fetches are failing, using placeholders", nil
		}
		return health.StatusUp, "avatar fetches healthy", nil
	})

	if c.Cache != nil {
		c.Health.RegisterCheck("cache", false, func(context.Context) (health.Status, string, error) {
			s := c.Cache.Stats()
			return health.StatusUp, fmt.Sprintf("%d items, %d hits, %d misses", s.Items, s.Hits, s.Misses), nil
		})
	}

	c.Health.RegisterCheck("calls", false, func(context.Context) (health.Status, string, error) {
		return health.StatusUp, fmt.Sprintf("%d live calls", c.Rooms.Count()), nil
	})
}

// Close ends every call and releases the backing connections
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Rooms != nil {
		c.Rooms.Shutdown()
	}
	if c.Observability != nil {
		errs = append(errs, c.Observability.Shutdown(ctx))
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if v, ok := c.Secrets.(*secrets.VaultManager); ok {
		v.Close()
	}
	if c.Cache != nil {
		c.Cache.Close()
	}
	return errors.Join(errs...)
}
