package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sriaudit/comprobantes-api/internal/browser"
	"github.com/sriaudit/comprobantes-api/internal/config"
	"github.com/sriaudit/comprobantes-api/internal/emitidos"
	"github.com/sriaudit/comprobantes-api/internal/history"
	"github.com/sriaudit/comprobantes-api/internal/navigator"
	"github.com/sriaudit/comprobantes-api/internal/session"
)

// Container holds the application's wired dependencies
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Redis    *redis.Client
	Browser  *browser.Service
	History  *history.Store
	Download *DownloadService
}

// NewContainer wires the application. Redis is optional: if it cannot be
// reached the session repository degrades to its file store. A browser that
// fails to start is fatal.
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	rdb := connectRedis(cfg.Redis, logger)

	browserSvc, err := browser.NewService(cfg.Browser, logger)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	repo := session.NewRepository(rdb, cfg.Redis.SessionTTL, cfg.Storage.SessionDir, logger)
	sessions := session.NewManager(repo, cfg.SRI, logger)
	nav := navigator.New(cfg.SRI, logger)
	scraper := emitidos.NewScraper(cfg.Browser.PageTimeout, logger)
	hist := history.NewStore(cfg.Storage.HistoryFile, logger)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Redis:    rdb,
		Browser:  browserSvc,
		History:  hist,
		Download: NewDownloadService(cfg, browserSvc, sessions, nav, scraper, hist, logger),
	}, nil
}

func connectRedis(cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, sessions will use the file store only")
		rdb.Close()
		return nil
	}

	logger.WithField("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).Info("Redis connected")
	return rdb
}

// Close releases the container's resources
func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.WithError(err).Warn("Error closing Redis connection")
		}
	}
}
