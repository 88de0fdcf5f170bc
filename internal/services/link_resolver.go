package services

import (
	"context"
	"sync"

	"github.com/ironroggers/ops-tracker/internal/repository"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// LinkResolver 查询资产关联的文档
type LinkResolver struct {
	maxParallel int
	metrics     *MetricsService
	logger      *zap.Logger
}

func NewLinkResolver(maxParallel int, metrics *MetricsService, logger *zap.Logger) *LinkResolver {
	if maxParallel <= 0 {
		maxParallel = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkResolver{maxParallel: maxParallel, metrics: metrics, logger: logger}
}

// LinksForAssets 每个资产一次并发查询，失败的资产得到空列表
func (r *LinkResolver) LinksForAssets(ctx context.Context, repo repository.DocumentLinkRepository, assetIDs []string) map[string][]string {
	links := make(map[string][]string, len(assetIDs))
	if repo == nil || len(assetIDs) == 0 {
		return links
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(r.maxParallel)
	for _, assetID := range assetIDs {
		assetID := assetID
		p.Go(func() {
			docIDs, err := repo.LinkedDocumentIDs(ctx, assetID)
			if err != nil {
				r.logger.Warn("document link lookup failed", zap.String("asset_id", assetID), zap.Error(err))
				r.metrics.RecordLinkFailure()
				docIDs = []string{}
			}
			if docIDs == nil {
				docIDs = []string{}
			}
			mu.Lock()
			links[assetID] = docIDs
			mu.Unlock()
		})
	}
	p.Wait()

	return links
}
