package knowledge

import (
	"context"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// FanOutResult 多文档检索的汇总结果，Chunks 未排序
type FanOutResult struct {
	Chunks               []EvidenceChunk           `json:"chunks"`
	ProcessedCollections []string                  `json:"processed_collections"`
	CollectionsInfo      map[string]CollectionInfo `json:"collections_info"`
	NotFound             int                       `json:"not_found"`
}

// FanOut 并发检索多个文档集合
type FanOut struct {
	engine      *SearchEngine
	access      *CollectionAccess
	stores      StoreProvider
	maxParallel int
	topK        int
	logger      *zap.Logger
}

func NewFanOut(engine *SearchEngine, access *CollectionAccess, stores StoreProvider, maxParallel, topK int, logger *zap.Logger) *FanOut {
	if maxParallel <= 0 {
		maxParallel = 8
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		engine:      engine,
		access:      access,
		stores:      stores,
		maxParallel: maxParallel,
		topK:        topK,
		logger:      logger,
	}
}

type docOutcome struct {
	docID  string
	name   string
	chunks []EvidenceChunk
	ok     bool
}

// SearchAll 对每个文档独立检索，单个文档失败只计入 NotFound
// 多个文档规范化后同名时，按输入顺序保留第一份结果
func (f *FanOut) SearchAll(ctx context.Context, docIDs []string, alias, query string) FanOutResult {
	docIDs = distinct(docIDs)
	outcomes := make([]docOutcome, len(docIDs))

	var vector []float32
	if len(docIDs) > 0 {
		vector = f.engine.EmbedQuery(ctx, query)
	}

	p := pool.New().WithMaxGoroutines(f.maxParallel)
	for i, docID := range docIDs {
		i, docID := i, docID
		p.Go(func() {
			var catcher panics.Catcher
			catcher.Try(func() {
				outcomes[i] = f.searchOne(ctx, alias, docID, vector)
			})
			if r := catcher.Recovered(); r != nil {
				f.logger.Error("document search panicked", zap.String("doc_id", docID), zap.Error(r.AsError()))
				outcomes[i] = docOutcome{docID: docID}
			}
		})
	}
	p.Wait()

	result := FanOutResult{
		Chunks:               []EvidenceChunk{},
		ProcessedCollections: []string{},
		CollectionsInfo:      make(map[string]CollectionInfo),
	}
	for _, o := range outcomes {
		if !o.ok {
			result.NotFound++
			continue
		}
		if _, seen := result.CollectionsInfo[o.name]; seen {
			continue
		}
		result.Chunks = append(result.Chunks, o.chunks...)
		result.ProcessedCollections = append(result.ProcessedCollections, o.name)
		result.CollectionsInfo[o.name] = CollectionInfo{CollectionName: o.name, DocID: o.docID}
	}

	f.logger.Info("fan-out finished",
		zap.Int("documents", len(docIDs)),
		zap.Int("processed", len(result.ProcessedCollections)),
		zap.Int("not_found", result.NotFound),
		zap.Int("chunks", len(result.Chunks)))
	return result
}

func (f *FanOut) searchOne(ctx context.Context, alias, docID string, vector []float32) docOutcome {
	out := docOutcome{docID: docID, name: NormalizeCollectionName(docID)}
	if out.name == "" {
		return out
	}

	if _, ok := f.stores.Store(alias); !ok {
		return out
	}

	// 连接已按别名建立，别名即租户
	h, err := f.access.Get(ctx, alias, docID)
	if err != nil {
		f.logger.Warn("collection access failed", zap.String("collection", out.name), zap.Error(err))
		return out
	}
	if h == nil {
		return out
	}

	chunks, err := f.engine.SearchVector(ctx, alias, docID, vector, f.topK)
	if err != nil {
		f.logger.Warn("document search failed", zap.String("doc_id", docID), zap.Error(err))
		return out
	}
	if len(chunks) == 0 {
		return out
	}

	for i := range chunks {
		chunks[i].DocID = docID
		chunks[i].CollectionName = out.name
	}
	out.chunks = chunks
	out.ok = true
	return out
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
