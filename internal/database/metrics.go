package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// MetricsCollector 关联库连接池指标
type MetricsCollector struct {
	db              *sql.DB
	logger          *logrus.Logger
	collectInterval time.Duration

	dbConnectionsGauge *prometheus.GaugeVec
}

// NewMetricsCollector 创建指标收集器，指标注册到 reg
func NewMetricsCollector(db *sql.DB, reg prometheus.Registerer, logger *logrus.Logger) *MetricsCollector {
	if logger == nil {
		logger = logrus.New()
	}
	return &MetricsCollector{
		db:              db,
		logger:          logger,
		collectInterval: 15 * time.Second,
		dbConnectionsGauge: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "link_store_connections",
				Help: "Connection pool state of the document link database",
			},
			[]string{"state"}, // idle, in_use, open, wait_count
		),
	}
}

// Start 定期采集，直到 ctx 结束
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting database metrics collection")

	ticker := time.NewTicker(mc.collectInterval)
	defer ticker.Stop()

	mc.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.Collect()
		}
	}
}

// Collect 采集一次连接池统计
func (mc *MetricsCollector) Collect() {
	stats := mc.db.Stats()

	mc.dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
	mc.dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	mc.dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
	mc.dbConnectionsGauge.WithLabelValues("wait_count").Set(float64(stats.WaitCount))

	mc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
	}).Debug("Database connection pool stats collected")
}
