package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"go.uber.org/zap"
)

// DefaultTopK 单文档默认召回数
const DefaultTopK = 10

// EvidenceChunk 一条检索证据
type EvidenceChunk struct {
	Text           string                 `json:"text"`
	Source         string                 `json:"source"`
	URL            string                 `json:"url"`
	Score          *float64               `json:"score"`
	ChunkIndex     *int64                 `json:"chunk_index"`
	PageNumber     *int64                 `json:"page_number"`
	Metadata       map[string]interface{} `json:"metadata"`
	DocID          string                 `json:"doc_id,omitempty"`
	CollectionName string                 `json:"collection_name,omitempty"`
}

// SearchEngine 单集合向量检索
type SearchEngine struct {
	stores     StoreProvider
	embeddings *EmbeddingService
	logger     *zap.Logger
}

func NewSearchEngine(stores StoreProvider, embeddings *EmbeddingService, logger *zap.Logger) *SearchEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchEngine{
		stores:     stores,
		embeddings: embeddings,
		logger:     logger,
	}
}

// Search 在 alias 连接下检索 docID 对应的集合
// 集合名为空或集合不存在时返回 InvalidCollection 错误，检索结束后释放集合
func (e *SearchEngine) Search(ctx context.Context, alias, docID, query string, topK int) ([]EvidenceChunk, error) {
	return e.search(ctx, alias, docID, topK, func() []float32 {
		return e.embeddings.Embed(ctx, query)
	})
}

// SearchVector 用已算好的查询向量检索，多文档检索时共用同一个向量
func (e *SearchEngine) SearchVector(ctx context.Context, alias, docID string, vector []float32, topK int) ([]EvidenceChunk, error) {
	return e.search(ctx, alias, docID, topK, func() []float32 {
		return vector
	})
}

// EmbedQuery 查询文本转向量
func (e *SearchEngine) EmbedQuery(ctx context.Context, query string) []float32 {
	return e.embeddings.Embed(ctx, query)
}

func (e *SearchEngine) search(ctx context.Context, alias, docID string, topK int, queryVector func() []float32) ([]EvidenceChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	name := NormalizeCollectionName(docID)
	if name == "" {
		return nil, apperrors.NewInvalidCollectionError(docID)
	}

	store, ok := e.stores.Store(alias)
	if !ok {
		return nil, apperrors.NewConfigurationError("no vector store connection for alias %s", alias)
	}

	exists, err := store.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NewInvalidCollectionError(name)
	}

	vector := queryVector()

	if err := store.LoadCollection(ctx, name); err != nil {
		return nil, err
	}
	defer func() {
		if err := store.ReleaseCollection(ctx, name); err != nil {
			e.logger.Warn("release collection failed", zap.String("collection", name), zap.Error(err))
		}
	}()

	hits, err := store.Search(ctx, name, vector, topK, searchOutputFields)
	if err != nil {
		return nil, fmt.Errorf("search collection %s: %w", name, err)
	}

	chunks := make([]EvidenceChunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, shapeChunk(hit))
	}
	return chunks, nil
}

// shapeChunk 把原始命中整理成证据，缺失的文本字段一律为空串
func shapeChunk(hit SearchHit) EvidenceChunk {
	score := float64(hit.Score)
	metadata := parseMetadata(hit.Fields[FieldMetadata])

	chunk := EvidenceChunk{
		Text:       asString(hit.Fields[FieldTextChunk]),
		Source:     asString(hit.Fields[FieldS3Key]),
		URL:        asString(hit.Fields[FieldS3URL]),
		Score:      &score,
		ChunkIndex: asInt64(hit.Fields[FieldChunkIndex]),
		PageNumber: asInt64(hit.Fields[FieldPageNumber]),
		Metadata:   metadata,
	}

	// 入库时缺页码会写 0，此时以元数据里的页码为准
	if chunk.PageNumber == nil || *chunk.PageNumber == 0 {
		if page := asInt64(metadata["page_number"]); page != nil {
			chunk.PageNumber = page
		}
	}
	return chunk
}

func parseMetadata(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case string:
		if strings.TrimSpace(m) == "" {
			return map[string]interface{}{}
		}
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(m), &out); err != nil || out == nil {
			return map[string]interface{}{}
		}
		return out
	case []byte:
		return parseMetadata(string(m))
	default:
		return map[string]interface{}{}
	}
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func asInt64(v interface{}) *int64 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int32:
		n = int64(x)
	case int:
		n = int64(x)
	case float64:
		n = int64(x)
	case float32:
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}
