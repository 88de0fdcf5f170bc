package middleware

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ironroggers/ops-tracker/internal/database"
)

// 依赖状态
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Status    string        `json:"status"`
	Required  bool          `json:"required"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type registeredChecker struct {
	checker  *database.HealthChecker
	required bool
}

// MiddlewareManager 汇总外部依赖（数据库、缓存、向量库）的健康状态
type MiddlewareManager struct {
	mu       sync.RWMutex
	checkers map[string]registeredChecker
}

// NewMiddlewareManager 创建中间件管理器
func NewMiddlewareManager() *MiddlewareManager {
	return &MiddlewareManager{checkers: make(map[string]registeredChecker)}
}

// Register 注册依赖，required 的依赖不健康时服务不就绪
func (m *MiddlewareManager) Register(checker *database.HealthChecker, required bool) {
	if checker == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[checker.Name()] = registeredChecker{checker: checker, required: required}
}

// Names 已注册的依赖名，按字母序
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start 为每个依赖启动后台探活
func (m *MiddlewareManager) Start(ctx context.Context) {
	for _, rc := range m.snapshot() {
		go rc.checker.Start(ctx)
	}
}

// Stop 停止所有后台探活
func (m *MiddlewareManager) Stop() {
	for _, rc := range m.snapshot() {
		rc.checker.Stop()
	}
}

// CheckHealth 立即探活所有依赖
func (m *MiddlewareManager) CheckHealth(ctx context.Context) map[string]HealthStatus {
	health := make(map[string]HealthStatus)
	for name, rc := range m.snapshot() {
		start := time.Now()
		err := rc.checker.Check(ctx)
		status := HealthStatus{
			Required:  rc.required,
			Latency:   time.Since(start),
			Timestamp: time.Now(),
			Status:    StatusHealthy,
		}
		if err != nil {
			status.Message = err.Error()
			status.Status = StatusUnhealthy
			if !rc.required {
				status.Status = StatusDegraded
			}
		}
		health[name] = status
	}
	return health
}

// Ready 所有必需依赖健康时就绪
func (m *MiddlewareManager) Ready(ctx context.Context) (bool, map[string]HealthStatus) {
	health := m.CheckHealth(ctx)
	ready := true
	for _, status := range health {
		if status.Required && status.Status != StatusHealthy {
			ready = false
		}
	}
	return ready, health
}

func (m *MiddlewareManager) snapshot() map[string]registeredChecker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]registeredChecker, len(m.checkers))
	for name, rc := range m.checkers {
		out[name] = rc
	}
	return out
}
