package knowledge

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"go.uber.org/zap"
)

// CollectionHandle 某个租户下某个文档对应的集合
type CollectionHandle struct {
	Tenant string
	DocID  string
	Alias  string
	Name   string
	store  VectorStore
}

// Store 集合所在的连接
func (h *CollectionHandle) Store() VectorStore {
	return h.store
}

// CollectionInfo 集合的简要描述
type CollectionInfo struct {
	CollectionName string `json:"collection_name"`
	DocID          string `json:"doc_id"`
	DomainName     string `json:"domain_name,omitempty"`
}

// CollectionAccess 负责集合的存在检查、加载与句柄缓存
type CollectionAccess struct {
	resolver  ConnectionResolver
	dimension int
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[string]*CollectionHandle
}

// NewCollectionAccess 创建集合访问层，dimension 用于建表
func NewCollectionAccess(resolver ConnectionResolver, dimension int, logger *zap.Logger) *CollectionAccess {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionAccess{
		resolver:  resolver,
		dimension: dimension,
		logger:    logger,
		cache:     make(map[string]*CollectionHandle),
	}
}

func cacheKey(tenant, docID string) string {
	return tenant + ":" + docID
}

func (a *CollectionAccess) cached(key string) (*CollectionHandle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.cache[key]
	return h, ok
}

// ForWorkOrder 获取文档集合并确保已加载，集合不存在时返回 NotFound 错误
func (a *CollectionAccess) ForWorkOrder(ctx context.Context, tenant, docID string) (*CollectionHandle, CollectionInfo, error) {
	key := cacheKey(tenant, docID)

	if h, ok := a.cached(key); ok {
		err := a.load(ctx, h.store, h.Name)
		if err == nil {
			return h, h.info(), nil
		}
		a.logger.Warn("cached collection failed to load, evicting",
			zap.String("collection", h.Name), zap.Error(err))
		a.evict(key, h)
	}

	alias, store, err := a.resolver.Resolve(ctx, tenant)
	if err != nil {
		return nil, CollectionInfo{}, err
	}

	name := NormalizeCollectionName(docID)
	if name == "" {
		return nil, CollectionInfo{}, apperrors.NewNotFoundError(fmt.Sprintf("collection for document %q", docID))
	}

	exists, err := store.HasCollection(ctx, name)
	if err != nil {
		return nil, CollectionInfo{}, err
	}
	if !exists {
		return nil, CollectionInfo{}, apperrors.NewNotFoundError(fmt.Sprintf("collection %s", name))
	}

	if err := store.DescribeCollection(ctx, name); err != nil {
		return nil, CollectionInfo{}, err
	}
	if err := a.load(ctx, store, name); err != nil {
		return nil, CollectionInfo{}, err
	}

	h := &CollectionHandle{
		Tenant: tenant,
		DocID:  docID,
		Alias:  alias,
		Name:   name,
		store:  store,
	}

	a.mu.Lock()
	a.cache[key] = h
	a.mu.Unlock()

	return h, h.info(), nil
}

// Get 尽力获取集合；集合不存在或加载失败返回 nil, nil，配置与鉴权错误照常返回
func (a *CollectionAccess) Get(ctx context.Context, tenant, docID string) (*CollectionHandle, error) {
	h, _, err := a.ForWorkOrder(ctx, tenant, docID)
	if err == nil {
		return h, nil
	}
	if apperrors.IsFatal(err) {
		return nil, err
	}
	a.logger.Debug("collection unavailable",
		zap.String("tenant", tenant), zap.String("doc_id", docID), zap.Error(err))
	return nil, nil
}

// EnsureLoaded 加载集合，失败时重新打开并再加载一次，只返回结果不返回错误
func (a *CollectionAccess) EnsureLoaded(ctx context.Context, h *CollectionHandle) bool {
	if h == nil || h.store == nil {
		return false
	}
	if err := a.load(ctx, h.store, h.Name); err != nil {
		a.logger.Warn("collection reload failed", zap.String("collection", h.Name), zap.Error(err))
		return false
	}
	return true
}

// load 加载失败时重新打开集合再加载一次
func (a *CollectionAccess) load(ctx context.Context, store VectorStore, name string) error {
	err := store.LoadCollection(ctx, name)
	if err == nil {
		return nil
	}

	exists, herr := store.HasCollection(ctx, name)
	if herr != nil {
		return herr
	}
	if !exists {
		return apperrors.NewNotFoundError(fmt.Sprintf("collection %s", name))
	}
	if err := store.DescribeCollection(ctx, name); err != nil {
		return err
	}
	return store.LoadCollection(ctx, name)
}

// Create 不存在时按分块表结构建集合，返回未加载的句柄
func (a *CollectionAccess) Create(ctx context.Context, tenant, docID string) (*CollectionHandle, error) {
	alias, store, err := a.resolver.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	name := NormalizeCollectionName(docID)
	if name == "" {
		return nil, apperrors.NewInvalidCollectionError(docID)
	}

	exists, err := store.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := store.CreateCollection(ctx, name, a.dimension); err != nil {
			return nil, err
		}
		a.logger.Info("collection created", zap.String("alias", alias), zap.String("collection", name))
	}

	return &CollectionHandle{
		Tenant: tenant,
		DocID:  docID,
		Alias:  alias,
		Name:   name,
		store:  store,
	}, nil
}

// Invalidate 移除缓存的句柄
func (a *CollectionAccess) Invalidate(tenant, docID string) {
	a.mu.Lock()
	delete(a.cache, cacheKey(tenant, docID))
	a.mu.Unlock()
}

// CacheSize 当前缓存的句柄数
func (a *CollectionAccess) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// evict 仅当缓存里仍是同一个句柄时才删除
func (a *CollectionAccess) evict(key string, h *CollectionHandle) {
	a.mu.Lock()
	if a.cache[key] == h {
		delete(a.cache, key)
	}
	a.mu.Unlock()
}

func (h *CollectionHandle) info() CollectionInfo {
	return CollectionInfo{
		CollectionName: h.Name,
		DocID:          h.DocID,
		DomainName:     h.Tenant,
	}
}
