// Package app wires configuration into the infrastructure and services the
// api and worker commands share.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/medtrack-api/internal/config"
	"github.com/jwalitptl/medtrack-api/internal/email"
	authhandler "github.com/jwalitptl/medtrack-api/internal/handler/auth"
	"github.com/jwalitptl/medtrack-api/internal/handler/health"
	notificationhandler "github.com/jwalitptl/medtrack-api/internal/handler/notification"
	patienthandler "github.com/jwalitptl/medtrack-api/internal/handler/patient"
	procedurehandler "github.com/jwalitptl/medtrack-api/internal/handler/procedure"
	promhandler "github.com/jwalitptl/medtrack-api/internal/handler/prometheus"
	statshandler "github.com/jwalitptl/medtrack-api/internal/handler/stats"
	userhandler "github.com/jwalitptl/medtrack-api/internal/handler/user"
	"github.com/jwalitptl/medtrack-api/internal/middleware"
	"github.com/jwalitptl/medtrack-api/internal/repository"
	"github.com/jwalitptl/medtrack-api/internal/repository/postgres"
	"github.com/jwalitptl/medtrack-api/internal/router"
	authsvc "github.com/jwalitptl/medtrack-api/internal/service/auth"
	"github.com/jwalitptl/medtrack-api/internal/service/event"
	notificationsvc "github.com/jwalitptl/medtrack-api/internal/service/notification"
	patientsvc "github.com/jwalitptl/medtrack-api/internal/service/patient"
	proceduresvc "github.com/jwalitptl/medtrack-api/internal/service/procedure"
	"github.com/jwalitptl/medtrack-api/internal/service/stats"
	usersvc "github.com/jwalitptl/medtrack-api/internal/service/user"
	"github.com/jwalitptl/medtrack-api/internal/storage"
	"github.com/jwalitptl/medtrack-api/internal/validation"
	"github.com/jwalitptl/medtrack-api/internal/worker"
	"github.com/jwalitptl/medtrack-api/pkg/auth"
	"github.com/jwalitptl/medtrack-api/pkg/logger"
	"github.com/jwalitptl/medtrack-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/medtrack-api/pkg/messaging/redis"
	"github.com/jwalitptl/medtrack-api/pkg/metrics"
	"github.com/jwalitptl/medtrack-api/pkg/security"
	"github.com/jwalitptl/medtrack-api/pkg/validator"
)

const denylistCleanupInterval = 10 * time.Minute

// LoadConfig reads configuration and installs the global logger.
func LoadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	l := logger.Setup(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	return cfg, l, nil
}

// Infra holds the process-wide connections.
type Infra struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Files    storage.Storage
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// NewInfra connects to postgres, redis (when configured) and report storage.
func NewInfra(ctx context.Context, cfg *config.Config, l zerolog.Logger) (*Infra, error) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	infra := &Infra{Config: cfg, Logger: l, DB: db}

	if cfg.Redis.Enabled() {
		client, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = client
	}

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	infra.Files = files

	infra.Registry = prometheus.NewRegistry()
	infra.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	infra.Metrics = metrics.NewMetrics(infra.Registry, cfg.Metrics.Namespace)

	return infra, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	return errors.Join(errs...)
}

// Repositories are the postgres-backed stores.
type Repositories struct {
	Tx            repository.Transactor
	Users         repository.UserRepository
	Roles         repository.RoleRepository
	Patients      repository.PatientRepository
	Procedures    repository.ProcedureRepository
	Notifications repository.NotificationRepository
	AdminStats    repository.AdminStatRepository
	FileCleanup   repository.FileCleanupRepository
}

func (i *Infra) Repositories() Repositories {
	return Repositories{
		Tx:            postgres.NewTransactor(i.DB),
		Users:         postgres.NewUserRepository(i.DB),
		Roles:         postgres.NewRoleRepository(i.DB),
		Patients:      postgres.NewPatientRepository(i.DB),
		Procedures:    postgres.NewProcedureRepository(i.DB),
		Notifications: postgres.NewNotificationRepository(i.DB),
		AdminStats:    postgres.NewAdminStatRepository(i.DB),
		FileCleanup:   postgres.NewFileCleanupRepository(i.DB),
	}
}

type Services struct {
	Auth         *authsvc.Service
	User         *usersvc.Service
	Notification notificationsvc.Service
	Stats        *stats.Service
	Patient      *patientsvc.Service
	Procedure    *proceduresvc.Service
	Pipeline     *event.Pipeline
}

// Services builds the domain services over repos.
func (i *Infra) Services(repos Repositories) *Services {
	var (
		broker   messaging.Broker = messaging.NopBroker{}
		denylist auth.Denylist
	)
	if i.Redis != nil {
		broker = redisbroker.NewRedisBroker(i.Redis, i.Logger)
		denylist = auth.NewRedisDenylist(i.Redis)
	} else {
		i.Logger.Warn().Msg("Redis not configured: refresh-token denylist is per process and notifications are not published")
		denylist = auth.NewMemoryDenylist(denylistCleanupInterval)
	}

	cfg := i.Config
	statsSvc := stats.NewService(repos.AdminStats)
	pipeline := event.NewPipeline(repos.Notifications, statsSvc, repos.FileCleanup, i.Files, broker, i.Metrics, i.Logger)
	val := validation.New(validator.New(), validation.SystemClock)

	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})

	return &Services{
		Auth: authsvc.NewService(repos.Tx, repos.Users, repos.Roles, val,
			security.NewBcryptHasher(cfg.Security.BcryptCost), jwtSvc, denylist, pipeline,
			email.NewService(cfg.Mail), i.Logger),
		User:         usersvc.NewService(repos.Users),
		Notification: notificationsvc.NewService(repos.Notifications),
		Stats:        statsSvc,
		Patient:      patientsvc.NewService(repos.Tx, repos.Patients, val, pipeline, i.Logger),
		Procedure: proceduresvc.NewService(repos.Tx, repos.Procedures, repos.Patients, i.Files, val,
			pipeline, cfg.Storage.MaxUploadBytes, i.Logger),
		Pipeline: pipeline,
	}
}

// Router builds the HTTP router with every route mounted.
func (i *Infra) Router(svcs *Services) *router.Router {
	cfg := i.Config

	handlers := router.Handlers{
		Health:       health.NewHandler(i.DB),
		Auth:         authhandler.NewHandler(svcs.Auth),
		User:         userhandler.NewHandler(svcs.User),
		Notification: notificationhandler.NewHandler(svcs.Notification),
		Stats:        statshandler.NewHandler(svcs.Stats),
		Patient:      patienthandler.NewHandler(svcs.Patient),
		Procedure:    procedurehandler.NewHandler(svcs.Procedure),
	}
	if cfg.Metrics.Enabled {
		handlers.Metrics = promhandler.New(i.Registry, cfg.Metrics.Namespace)
	}

	rc := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		CORS:           middleware.CORSConfigFrom(cfg.CORS),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		rc.RateLimit = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		})
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(svcs.Auth), handlers, rc)
	r.Setup()
	return r
}

// FileCleanup builds the cleanup queue processor.
func (i *Infra) FileCleanup(repos Repositories) (*worker.FileCleanupProcessor, error) {
	cfg := i.Config.Cleanup
	return worker.NewFileCleanupProcessor(repos.Tx, repos.FileCleanup, i.Files, worker.FileCleanupConfig{
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
	}, i.Logger, i.Metrics)
}
