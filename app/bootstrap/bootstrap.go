package bootstrap

import (
	"context"
	"log"

	"github.com/ironroggers/ops-tracker/internal/config"
	"github.com/ironroggers/ops-tracker/internal/database"
	"github.com/ironroggers/ops-tracker/internal/di"
	"github.com/ironroggers/ops-tracker/internal/logger"
	"github.com/ironroggers/ops-tracker/internal/middleware"
	"github.com/ironroggers/ops-tracker/internal/repository"
	"github.com/ironroggers/ops-tracker/internal/services"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
	cancel       context.CancelFunc

	Config       *config.Config
	DeepAnalysis *services.DeepAnalysisService
	Links        repository.DocumentLinkRepository
	Milvus       *middleware.MilvusService
	Manager      *middleware.MiddlewareManager
	Metrics      *services.MetricsService
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

type components struct {
	dig.In

	Config       *config.Config
	Connections  *di.Connections
	DeepAnalysis *services.DeepAnalysisService
	Links        repository.DocumentLinkRepository
	Milvus       *middleware.MilvusService
	Manager      *middleware.MiddlewareManager
	Metrics      *services.MetricsService
	Registry     *prometheus.Registry
	ProbeLog     *logrus.Logger
}

// Init bootstraps configuration, logger, connections and the dependency graph
// required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container, config.GetAppConfig(), di.Overrides{}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{cancel: cancel}

	err := container.Invoke(func(c components) {
		app.Config = c.Config
		app.DeepAnalysis = c.DeepAnalysis
		app.Links = c.Links
		app.Milvus = c.Milvus
		app.Manager = c.Manager
		app.Metrics = c.Metrics

		app.cleanupTasks = append(app.cleanupTasks, func() error {
			c.Connections.Close()
			return nil
		})

		if c.Connections.Postgres != nil {
			if sqlDB, err := c.Connections.Postgres.DB(); err == nil {
				collector := database.NewMetricsCollector(sqlDB, c.Registry, c.ProbeLog)
				go collector.Start(ctx)
			}
		}
	})
	if err != nil {
		cancel()
		return nil, err
	}

	// 证据检索使用默认租户的连接，失败时证据管道返回空结果
	if err := app.Milvus.ConnectActive(ctx, middleware.DefaultTenant); err != nil {
		logger.Warn("Failed to connect to Milvus, evidence search disabled", zap.Error(err))
	} else {
		logger.Info("Milvus connected", zap.String("alias", app.Milvus.ActiveAlias()))
	}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		app.Milvus.DisconnectAll()
		return nil
	})

	if app.Links == nil {
		logger.Warn("Document link store unavailable, evidence pipeline will return empty results",
			zap.String("provider", app.Config.Links.Provider))
	}

	app.Manager.Start(ctx)
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		app.Manager.Stop()
		return nil
	})

	SetGlobalApp(app)
	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	logger.Sync()
}
