package knowledge

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// DefaultEmbeddingDimension 未配置维度时使用
const DefaultEmbeddingDimension = 384

// EmbeddingService 固定维度的向量化服务，任何失败都返回零向量
type EmbeddingService struct {
	embedder  Embedder
	dimension int
	logger    *zap.Logger
}

// NewEmbeddingService 创建向量化服务，dimension 是全进程统一的向量维度
func NewEmbeddingService(embedder Embedder, dimension int, logger *zap.Logger) *EmbeddingService {
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}
	if embedder == nil {
		embedder = &NoopEmbedder{Dim: dimension}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingService{
		embedder:  embedder,
		dimension: dimension,
		logger:    logger,
	}
}

// Dimension 向量维度
func (s *EmbeddingService) Dimension() int {
	return s.dimension
}

// Ready 底层向量化服务是否可用
func (s *EmbeddingService) Ready() bool {
	return s.embedder.Ready()
}

// Embed 文本转向量；空文本和下游错误均返回零向量，长度总是 Dimension()
func (s *EmbeddingService) Embed(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return make([]float32, s.dimension)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding failed, using zero vector", zap.Error(err))
		return make([]float32, s.dimension)
	}
	return FitDimension(vec, s.dimension)
}

// FitDimension 补零或截断到指定维度
func FitDimension(vec []float32, dim int) []float32 {
	if dim < 0 {
		dim = 0
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
