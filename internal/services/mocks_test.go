package services

import (
	"context"

	"github.com/ironroggers/ops-tracker/internal/knowledge"
	"github.com/stretchr/testify/mock"
)

// MockLinkRepository 模拟资产-文档关联存储
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) LinkedDocumentIDs(ctx context.Context, assetID string) ([]string, error) {
	args := m.Called(ctx, assetID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// MockStructuredAnalyst 模拟结构化数据分析模型
type MockStructuredAnalyst struct {
	mock.Mock
}

func (m *MockStructuredAnalyst) AnalyzeContext(ctx context.Context, prompt string, data map[string]interface{}) (string, error) {
	args := m.Called(ctx, prompt, data)
	return args.String(0), args.Error(1)
}

// MockEvidenceSynthesizer 模拟证据综合模型
type MockEvidenceSynthesizer struct {
	mock.Mock
}

func (m *MockEvidenceSynthesizer) Synthesize(ctx context.Context, prompt string, chunks []knowledge.EvidenceChunk) (string, error) {
	args := m.Called(ctx, prompt, chunks)
	return args.String(0), args.Error(1)
}
