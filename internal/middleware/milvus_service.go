package middleware

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/ironroggers/ops-tracker/internal/config"
	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"github.com/ironroggers/ops-tracker/internal/knowledge"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTenant 使用全局连接配置的租户
const DefaultTenant = "default"

// MilvusService 按租户管理Milvus连接，连接以别名为键
type MilvusService struct {
	config    config.MilvusConfig
	dial      knowledge.Dialer
	lookupEnv func(string) string
	logger    *zap.Logger

	mu          sync.RWMutex
	conns       map[string]knowledge.VectorStore
	activeAlias string
	group       singleflight.Group
}

// NewMilvusService 创建连接注册表，lookupEnv 用于读取租户级的 MILVUS_URI_<domain> 配置
func NewMilvusService(cfg config.MilvusConfig, dial knowledge.Dialer, lookupEnv func(string) string, logger *zap.Logger) *MilvusService {
	if lookupEnv == nil {
		lookupEnv = func(string) string { return "" }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MilvusService{
		config:    cfg,
		dial:      dial,
		lookupEnv: lookupEnv,
		logger:    logger,
		conns:     make(map[string]knowledge.VectorStore),
	}
}

// Credentials 解析租户的连接地址、token 与连接别名
// 依次查找 MILVUS_URI_<base>、MILVUS_URI_<BASE>（- 换成 _），最后回落到全局配置；地址与 token 分别回落
func (s *MilvusService) Credentials(tenant string) (string, string, string) {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" || tenant == DefaultTenant {
		return s.config.URI, s.config.Token, DefaultTenant
	}

	base := tenant
	if i := strings.Index(tenant, "."); i >= 0 {
		base = tenant[:i]
	}
	upper := strings.ReplaceAll(strings.ToUpper(base), "-", "_")

	uri := s.firstEnv("MILVUS_URI_"+base, "MILVUS_URI_"+upper)
	if uri == "" {
		uri = s.config.URI
	}
	token := s.firstEnv("MILVUS_TOKEN_"+base, "MILVUS_TOKEN_"+upper)
	if token == "" {
		token = s.config.Token
	}
	return uri, token, base
}

func (s *MilvusService) firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(s.lookupEnv(key)); v != "" {
			return v
		}
	}
	return ""
}

// validateURI https 地址必须带 token，http 地址必须带 host:port
func validateURI(tenant, uri, token string) error {
	if uri == "" {
		return apperrors.NewConfigurationError("no Milvus URI configured for tenant %q", tenant)
	}
	if strings.HasPrefix(strings.ToLower(uri), "https://") {
		if token == "" {
			return apperrors.NewAuthError("Milvus token required for secure URI of tenant %q", tenant)
		}
		return nil
	}

	if !strings.Contains(uri, "://") {
		return apperrors.NewConfigurationError("Milvus URI %q must include a scheme", uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return apperrors.NewConfigurationError("invalid Milvus URI %q", uri).WithCause(err)
	}
	if !strings.EqualFold(u.Scheme, "http") {
		return apperrors.NewConfigurationError("Milvus URI %q must use http or https", uri)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return apperrors.NewConfigurationError("Milvus URI %q must be host:port", uri)
	}
	return nil
}

// Connect 为租户建立连接并按别名注册，同名旧连接会被替换并关闭
func (s *MilvusService) Connect(ctx context.Context, tenant string) (string, error) {
	uri, token, alias := s.Credentials(tenant)
	if err := validateURI(tenant, uri, token); err != nil {
		return "", err
	}

	store, err := s.dial(ctx, uri, token)
	if err != nil {
		return "", apperrors.NewSystemError(apperrors.ErrCodeExternalService, "failed to connect to Milvus").WithCause(err)
	}

	s.mu.Lock()
	old := s.conns[alias]
	s.conns[alias] = store
	s.mu.Unlock()

	if old != nil && old != store {
		if err := old.Close(); err != nil {
			s.logger.Warn("close replaced milvus connection failed", zap.String("alias", alias), zap.Error(err))
		}
	}

	s.logger.Info("milvus connected", zap.String("tenant", tenant), zap.String("alias", alias))
	return alias, nil
}

// Resolve 返回租户的连接，首次访问时建立；同一别名的并发首次访问只拨号一次
func (s *MilvusService) Resolve(ctx context.Context, tenant string) (string, knowledge.VectorStore, error) {
	_, _, alias := s.Credentials(tenant)
	if store, ok := s.Store(alias); ok {
		return alias, store, nil
	}

	_, err, _ := s.group.Do(alias, func() (interface{}, error) {
		if _, ok := s.Store(alias); ok {
			return nil, nil
		}
		// 拨号结果由所有等待者共享，不跟随首个调用方取消
		_, err := s.Connect(context.WithoutCancel(ctx), tenant)
		return nil, err
	})
	if err != nil {
		return "", nil, err
	}

	store, ok := s.Store(alias)
	if !ok {
		return "", nil, apperrors.NewConfigurationError("milvus connection %q disappeared", alias)
	}
	return alias, store, nil
}

// Store 按别名取连接
func (s *MilvusService) Store(alias string) (knowledge.VectorStore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	store, ok := s.conns[alias]
	return store, ok
}

// HasConnection 别名是否已注册
func (s *MilvusService) HasConnection(alias string) bool {
	_, ok := s.Store(alias)
	return ok
}

// Disconnect 只断开该租户的别名
func (s *MilvusService) Disconnect(tenant string) error {
	_, _, alias := s.Credentials(tenant)

	s.mu.Lock()
	store, ok := s.conns[alias]
	delete(s.conns, alias)
	if s.activeAlias == alias {
		s.activeAlias = ""
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return store.Close()
}

// DisconnectAll 断开全部连接
func (s *MilvusService) DisconnectAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]knowledge.VectorStore)
	s.activeAlias = ""
	s.mu.Unlock()

	for alias, store := range conns {
		if err := store.Close(); err != nil {
			s.logger.Warn("close milvus connection failed", zap.String("alias", alias), zap.Error(err))
		}
	}
}

// ConnectActive 启动时连接证据检索使用的租户，成功后记为当前别名
func (s *MilvusService) ConnectActive(ctx context.Context, tenant string) error {
	alias, _, err := s.Resolve(ctx, tenant)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.activeAlias = alias
	s.mu.Unlock()
	return nil
}

// ActiveAlias 启动时建立的连接别名，未建立时为空
func (s *MilvusService) ActiveAlias() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeAlias
}

// Ready 当前别名的连接是否可用
func (s *MilvusService) Ready() bool {
	alias := s.ActiveAlias()
	return alias != "" && s.HasConnection(alias)
}

// Ping 通过当前别名的连接探活，供健康检查使用
func (s *MilvusService) Ping(ctx context.Context) error {
	alias := s.ActiveAlias()
	if alias == "" {
		return apperrors.NewConfigurationError("no active milvus connection")
	}
	store, ok := s.Store(alias)
	if !ok {
		return apperrors.NewConfigurationError("milvus connection %s closed", alias)
	}
	_, err := store.HasCollection(ctx, "health_probe")
	return err
}
