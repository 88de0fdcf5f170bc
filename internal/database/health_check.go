package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var errNotConfigured = errors.New("dependency not configured")

// Pinger 可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 函数形式的 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// SQLPinger 包装 *sql.DB
func SQLPinger(db *sql.DB) Pinger {
	return PingFunc(db.PingContext)
}

// HealthChecker 依赖健康检查器，后台定期探活
type HealthChecker struct {
	name          string
	pinger        Pinger
	logger        *logrus.Logger
	checkInterval time.Duration
	timeout       time.Duration
	isHealthy     bool
	lastCheck     time.Time
	lastError     error
	lastLatency   time.Duration
	mu            sync.RWMutex
	stopChan      chan struct{}
	running       bool
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Name         string    `json:"name"`
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(name string, pinger Pinger, logger *logrus.Logger) *HealthChecker {
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthChecker{
		name:          name,
		pinger:        pinger,
		logger:        logger,
		checkInterval: 30 * time.Second,
		timeout:       5 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Name 依赖名
func (hc *HealthChecker) Name() string {
	return hc.name
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// Start 开始后台检查，直到 ctx 结束或调用 Stop
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	interval := hc.checkInterval
	hc.mu.Unlock()

	hc.logger.WithField("dependency", hc.name).Info("Starting health checker")

	// 立即执行一次检查
	_ = hc.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.stopped()
			return
		case <-hc.stopChan:
			hc.stopped()
			return
		case <-ticker.C:
			_ = hc.Check(ctx)
		}
	}
}

func (hc *HealthChecker) stopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
	hc.logger.WithField("dependency", hc.name).Info("Health checker stopped")
}

// Stop 停止后台检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	select {
	case <-hc.stopChan:
	default:
		close(hc.stopChan)
	}
}

// Check 执行单次检查
func (hc *HealthChecker) Check(ctx context.Context) error {
	if hc.pinger == nil {
		hc.record(errNotConfigured, 0)
		return errNotConfigured
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	err := hc.pinger.Ping(ctx)
	hc.record(err, time.Since(start))
	return err
}

func (hc *HealthChecker) record(err error, responseTime time.Duration) {
	hc.mu.Lock()
	wasHealthy := hc.isHealthy
	hc.lastCheck = time.Now()
	hc.lastError = err
	hc.lastLatency = responseTime
	hc.isHealthy = err == nil
	hc.mu.Unlock()

	entry := hc.logger.WithFields(logrus.Fields{
		"dependency":    hc.name,
		"response_time": responseTime,
	})
	switch {
	case err != nil:
		entry.WithError(err).Warn("Health check failed")
	case !wasHealthy:
		entry.Info("Dependency connection restored")
	default:
		entry.Debug("Health check passed")
	}
}

// IsHealthy 当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// GetHealthResult 获取检查结果
func (hc *HealthChecker) GetHealthResult() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Name:      hc.name,
		Healthy:   hc.isHealthy,
		LastCheck: hc.lastCheck,
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	if hc.lastLatency > 0 {
		result.ResponseTime = hc.lastLatency.String()
	}
	return result
}

// WaitForHealthy 等待依赖变为健康
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}
