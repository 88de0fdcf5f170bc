package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ironroggers/ops-tracker/internal/analysis"
	"github.com/ironroggers/ops-tracker/internal/config"
	"github.com/ironroggers/ops-tracker/internal/database"
	"github.com/ironroggers/ops-tracker/internal/knowledge"
	"github.com/ironroggers/ops-tracker/internal/logger"
	"github.com/ironroggers/ops-tracker/internal/middleware"
	"github.com/ironroggers/ops-tracker/internal/repository"
	"github.com/ironroggers/ops-tracker/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Connections 启动时建立的外部连接，连接失败的字段为 nil
type Connections struct {
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	Postgres *gorm.DB
	Redis    *redis.Client
}

// Close 关闭所有连接
func (c *Connections) Close() {
	_ = database.CloseMongo(c.Mongo)
	_ = database.CloseDB(c.Postgres)
	_ = database.CloseRedis(c.Redis)
}

// Overrides 测试或工具命令替换默认实现
type Overrides struct {
	Connections *Connections
	Dialer      knowledge.Dialer
	Registry    *prometheus.Registry
	LookupEnv   func(string) string
}

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, cfg *config.Config, overrides Overrides) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	// 注册配置与日志
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return err
	}
	if err := container.Provide(func() *zap.Logger { return logger.GetLogger() }); err != nil {
		return err
	}
	if err := container.Provide(newProbeLogger); err != nil {
		return err
	}

	// 注册指标
	if err := container.Provide(func() *prometheus.Registry {
		if overrides.Registry != nil {
			return overrides.Registry
		}
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return reg
	}); err != nil {
		return err
	}
	if err := container.Provide(func(reg *prometheus.Registry) *services.MetricsService {
		return services.NewMetricsService(reg)
	}); err != nil {
		return err
	}

	// 注册外部连接
	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) *Connections {
		if overrides.Connections != nil {
			return overrides.Connections
		}
		return OpenConnections(context.Background(), cfg, log)
	}); err != nil {
		return err
	}
	if err := container.Provide(newDocumentLinkRepository); err != nil {
		return err
	}

	// 注册向量检索
	if err := container.Provide(newEmbeddingService); err != nil {
		return err
	}
	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) *middleware.MilvusService {
		dial := overrides.Dialer
		if dial == nil {
			dial = knowledge.NewMilvusDialer(knowledge.MilvusOptions{
				SearchEf: cfg.Milvus.SearchEf,
				Shards:   cfg.Milvus.Shards,
			})
		}
		lookupEnv := overrides.LookupEnv
		if lookupEnv == nil {
			lookupEnv = os.Getenv
		}
		return middleware.NewMilvusService(cfg.Milvus, dial, lookupEnv, logger.Named("milvus", log))
	}); err != nil {
		return err
	}
	if err := container.Provide(func(milvus *middleware.MilvusService, emb *knowledge.EmbeddingService, log *zap.Logger) *knowledge.CollectionAccess {
		return knowledge.NewCollectionAccess(milvus, emb.Dimension(), logger.Named("collections", log))
	}); err != nil {
		return err
	}
	if err := container.Provide(func(milvus *middleware.MilvusService, emb *knowledge.EmbeddingService, log *zap.Logger) *knowledge.SearchEngine {
		return knowledge.NewSearchEngine(milvus, emb, logger.Named("search", log))
	}); err != nil {
		return err
	}
	if err := container.Provide(func(engine *knowledge.SearchEngine, access *knowledge.CollectionAccess, milvus *middleware.MilvusService, cfg *config.Config, log *zap.Logger) *knowledge.FanOut {
		return knowledge.NewFanOut(engine, access, milvus, cfg.Analysis.MaxParallel, cfg.Analysis.TopK, logger.Named("fanout", log))
	}); err != nil {
		return err
	}
	if err := container.Provide(func(access *knowledge.CollectionAccess, emb *knowledge.EmbeddingService, log *zap.Logger) *knowledge.Indexer {
		return knowledge.NewIndexer(access, emb, logger.Named("indexer", log))
	}); err != nil {
		return err
	}

	// 注册分析服务
	if err := container.Provide(newDeepAnalysisService); err != nil {
		return err
	}
	if err := container.Provide(newMiddlewareManager); err != nil {
		return err
	}

	return nil
}

// OpenConnections 连接Mongo、Postgres与Redis，失败只记录日志
func OpenConnections(ctx context.Context, cfg *config.Config, log *zap.Logger) *Connections {
	conns := &Connections{}

	if cfg.Links.Provider == "postgres" {
		db, err := database.InitDB(cfg.Postgres, log)
		if err != nil {
			log.Warn("postgres unavailable, document links disabled", zap.Error(err))
		} else {
			conns.Postgres = db
		}
	} else {
		client, db, err := database.InitMongo(ctx, cfg.Mongo, log)
		if err != nil {
			log.Warn("mongo unavailable, document links disabled", zap.Error(err))
		} else {
			conns.Mongo, conns.MongoDB = client, db
		}
	}

	rdb, err := database.InitRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, embedding cache disabled", zap.Error(err))
	} else {
		conns.Redis = rdb
	}
	return conns
}

func newProbeLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

func newDocumentLinkRepository(conns *Connections) repository.DocumentLinkRepository {
	switch {
	case conns.MongoDB != nil:
		return repository.NewMongoDocumentLinkRepository(conns.MongoDB)
	case conns.Postgres != nil:
		return repository.NewPostgresDocumentLinkRepository(conns.Postgres)
	default:
		return nil
	}
}

func newEmbeddingService(cfg *config.Config, conns *Connections, log *zap.Logger) *knowledge.EmbeddingService {
	embedder := knowledge.NewOpenAIEmbedder(knowledge.OpenAIEmbedderOptions{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimension,
	})
	ttl := time.Duration(cfg.Redis.EmbeddingCacheTTL) * time.Second
	embedder = knowledge.NewCachedEmbedder(embedder, conns.Redis, cfg.Embedding.Model, ttl, logger.Named("embedding_cache", log))
	return knowledge.NewEmbeddingService(embedder, cfg.Embedding.Dimension, logger.Named("embedding", log))
}

func newDeepAnalysisService(
	cfg *config.Config,
	fanOut *knowledge.FanOut,
	milvus *middleware.MilvusService,
	metrics *services.MetricsService,
	log *zap.Logger,
) *services.DeepAnalysisService {
	analystLog := logger.Named("analyst", log)
	return services.NewDeepAnalysisService(services.DeepAnalysisOptions{
		Data:    services.NewDataLoaderService(cfg.Analysis.DataDir, logger.Named("data_loader", log)),
		Links:   services.NewLinkResolver(cfg.Analysis.MaxParallel, metrics, logger.Named("links", log)),
		Search:  fanOut,
		Aliases: milvus,
		Analyst: analysis.NewChatAnalyst(analysis.ChatAnalystOptions{
			Name:              "structured",
			APIKey:            cfg.LLM.Structured.APIKey,
			BaseURL:           cfg.LLM.Structured.BaseURL,
			Model:             cfg.LLM.Structured.Model,
			Temperature:       cfg.LLM.Structured.Temperature,
			RequestsPerMinute: cfg.LLM.Structured.RequestsPerMinute,
		}, analystLog),
		Synthesizer: analysis.NewChatAnalyst(analysis.ChatAnalystOptions{
			Name:              "evidence",
			APIKey:            cfg.LLM.Evidence.APIKey,
			BaseURL:           cfg.LLM.Evidence.BaseURL,
			Model:             cfg.LLM.Evidence.Model,
			Temperature:       cfg.LLM.Evidence.Temperature,
			RequestsPerMinute: cfg.LLM.Evidence.RequestsPerMinute,
		}, analystLog),
		ResultLimit: cfg.Analysis.ResultLimit,
		Metrics:     metrics,
		Logger:      logger.Named("deep_analysis", log),
	})
}

func newMiddlewareManager(conns *Connections, milvus *middleware.MilvusService, probeLog *logrus.Logger) *middleware.MiddlewareManager {
	m := middleware.NewMiddlewareManager()
	if conns.Mongo != nil {
		m.Register(database.NewHealthChecker("mongo", database.MongoPinger(conns.Mongo), probeLog), true)
	}
	if conns.Postgres != nil {
		if sqlDB, err := conns.Postgres.DB(); err == nil {
			m.Register(database.NewHealthChecker("postgres", database.SQLPinger(sqlDB), probeLog), true)
		}
	}
	if conns.Redis != nil {
		m.Register(database.NewHealthChecker("redis", database.RedisPinger(conns.Redis), probeLog), false)
	}
	m.Register(database.NewHealthChecker("milvus", database.PingFunc(milvus.Ping), probeLog), true)
	return m
}
