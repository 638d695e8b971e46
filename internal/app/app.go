package app

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/edupoint-api/internal/repository"
	"github.com/noah-isme/edupoint-api/internal/service"
	"github.com/noah-isme/edupoint-api/pkg/cache"
	"github.com/noah-isme/edupoint-api/pkg/config"
	"github.com/noah-isme/edupoint-api/pkg/database"
	"github.com/noah-isme/edupoint-api/pkg/deeplink"
)

// Repositories groups the SQL-backed stores.
type Repositories struct {
	Users       *repository.UserRepository
	Students    *repository.StudentRepository
	Teachers    *repository.TeacherRepository
	Rewards     *repository.RewardRepository
	Activities  *repository.ActivityRepository
	Redemptions *repository.RedemptionRepository
	Balances    *repository.BalanceRepository
	Cache       *repository.CacheRepository
}

// Services groups the ledger services used by the HTTP server and the CLI.
type Services struct {
	Metrics     *service.MetricsService
	Cache       *service.CacheService
	Access      *service.AccessService
	Auth        *service.AuthService
	Balances    *service.BalanceService
	Activities  *service.ActivityService
	Redemptions *service.RedemptionService
	Rewards     *service.RewardService
	Students    *service.StudentService
	Teachers    *service.TeacherService
	QR          *service.QRService
	Dashboard   *service.DashboardService
}

// Container owns the shared connections and everything built on them.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Repos    Repositories
	Services Services
}

// New connects to Postgres (running migrations when enabled), optionally to
// Redis, and wires repositories and services.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		}
	}

	c := &Container{Config: cfg, Logger: logger, DB: db, Redis: redisClient}
	c.Repos = newRepositories(db, redisClient, logger)
	c.Services = newServices(cfg, c.Repos, database.NewTxRunner(db), redisClient != nil, logger)
	return c, nil
}

func newRepositories(db *sqlx.DB, redisClient *redis.Client, logger *zap.Logger) Repositories {
	return Repositories{
		Users:       repository.NewUserRepository(db),
		Students:    repository.NewStudentRepository(db),
		Teachers:    repository.NewTeacherRepository(db),
		Rewards:     repository.NewRewardRepository(db),
		Activities:  repository.NewActivityRepository(db),
		Redemptions: repository.NewRedemptionRepository(db),
		Balances:    repository.NewBalanceRepository(db),
		Cache:       repository.NewCacheRepository(redisClient, logger),
	}
}

func newServices(cfg *config.Config, repos Repositories, tx *database.TxRunner, cacheEnabled bool, logger *zap.Logger) Services {
	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repos.Cache, metrics, cfg.Cache.TTL, logger, cacheEnabled)
	access := service.NewAccessService(repos.Teachers, repos.Students)
	audit := repos.Users

	balances := service.NewBalanceService(tx, repos.Students, repos.Balances, cacheSvc, metrics, audit, logger)
	activities := service.NewActivityService(tx, repos.Students, repos.Activities, access, cacheSvc, metrics, audit, validate, logger)
	redemptions := service.NewRedemptionService(tx, repos.Redemptions, repos.Students, repos.Rewards, access, cacheSvc, metrics, audit, validate, logger)
	signer := deeplink.NewSigner(cfg.QR.SigningSecret, cfg.QR.LinkTTL, cfg.QR.BaseURL)

	return Services{
		Metrics:     metrics,
		Cache:       cacheSvc,
		Access:      access,
		Balances:    balances,
		Activities:  activities,
		Redemptions: redemptions,
		Auth: service.NewAuthService(repos.Users, tx, repos.Students, repos.Teachers, validate, logger, service.AuthConfig{
			AccessTokenSecret:  cfg.JWT.Secret,
			AccessTokenExpiry:  cfg.JWT.Expiration,
			Issuer:             cfg.JWT.Issuer,
			SignupEnabled:      cfg.Accounts.SignupEnabled,
			TempPasswordLength: cfg.Accounts.TempPasswordLength,
		}),
		Rewards:   service.NewRewardService(repos.Rewards, access, audit, validate, logger),
		Students:  service.NewStudentService(repos.Students, repos.Activities, repos.Redemptions, balances, access, cacheSvc, validate, logger),
		Teachers:  service.NewTeacherService(repos.Teachers, access, audit, validate, logger),
		QR:        service.NewQRService(signer, repos.Students, access, activities, redemptions, cfg.QR.ImageSize, logger),
		Dashboard: service.NewDashboardService(balances, repos.Activities, repos.Redemptions, repos.Teachers, repos.Students, repos.Rewards, logger),
	}
}

// Close releases the database and Redis connections.
func (c *Container) Close() error {
	var firstErr error
	if err := c.Repos.Cache.Close(); err != nil {
		firstErr = err
	}
	if err := c.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
