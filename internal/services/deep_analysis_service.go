package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ironroggers/ops-tracker/internal/analysis"
	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"github.com/ironroggers/ops-tracker/internal/knowledge"
	"github.com/ironroggers/ops-tracker/internal/repository"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// AnalysisResult 两条分析管道的结果
type AnalysisResult struct {
	DataRCA map[string]interface{} `json:"data_rca"`
	PdfRCA  map[string]interface{} `json:"pdf_rca"`
}

// DeepAnalysisResponse 成功时只有 Result，失败时只有 Error
type DeepAnalysisResponse struct {
	Result *AnalysisResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// DataSource 结构化数据来源
type DataSource interface {
	LoadAll(ctx context.Context) map[string]interface{}
}

// DocumentSearcher 多文档向量检索
type DocumentSearcher interface {
	SearchAll(ctx context.Context, docIDs []string, alias, query string) knowledge.FanOutResult
}

// AliasSource 启动时建立的向量库连接别名
type AliasSource interface {
	ActiveAlias() string
}

// DeepAnalysisOptions 深度分析服务的依赖
type DeepAnalysisOptions struct {
	Data        DataSource
	Links       *LinkResolver
	Search      DocumentSearcher
	Aliases     AliasSource
	Analyst     analysis.StructuredAnalyst
	Synthesizer analysis.EvidenceSynthesizer
	ResultLimit int
	Metrics     *MetricsService
	Logger      *zap.Logger
}

// DeepAnalysisService 并行运行结构化数据分析与文档证据综合
type DeepAnalysisService struct {
	data        DataSource
	links       *LinkResolver
	search      DocumentSearcher
	aliases     AliasSource
	analyst     analysis.StructuredAnalyst
	synthesizer analysis.EvidenceSynthesizer
	resultLimit int
	metrics     *MetricsService
	logger      *zap.Logger
}

func NewDeepAnalysisService(opts DeepAnalysisOptions) *DeepAnalysisService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = knowledge.DefaultResultLimit
	}
	if opts.Links == nil {
		opts.Links = NewLinkResolver(0, opts.Metrics, opts.Logger)
	}
	return &DeepAnalysisService{
		data:        opts.Data,
		links:       opts.Links,
		search:      opts.Search,
		aliases:     opts.Aliases,
		analyst:     opts.Analyst,
		synthesizer: opts.Synthesizer,
		resultLimit: opts.ResultLimit,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// RunDeepAnalysis 执行一次深度分析，links 为本次请求可用的关联存储，不可用时传 nil
func (s *DeepAnalysisService) RunDeepAnalysis(ctx context.Context, prompt string, links repository.DocumentLinkRepository) DeepAnalysisResponse {
	start := time.Now()

	var (
		result *AnalysisResult
		err    error
	)
	var catcher panics.Catcher
	catcher.Try(func() {
		result, err = s.analyze(ctx, prompt, links)
	})
	if r := catcher.Recovered(); r != nil {
		err = fmt.Errorf("deep analysis panicked: %v", r.Value)
	}

	if err != nil {
		s.logger.Error("deep analysis failed", zap.Error(err))
		s.metrics.ObserveAnalysis("error", time.Since(start))
		return DeepAnalysisResponse{Error: err.Error()}
	}

	s.metrics.ObserveAnalysis("ok", time.Since(start))
	return DeepAnalysisResponse{Result: result}
}

func (s *DeepAnalysisService) analyze(ctx context.Context, prompt string, links repository.DocumentLinkRepository) (*AnalysisResult, error) {
	data := map[string]interface{}{}
	if s.data != nil {
		data = s.data.LoadAll(ctx)
	}

	var (
		dataRCA, pdfRCA map[string]interface{}
		dataErr, pdfErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		dataRCA, dataErr = s.runStructured(ctx, prompt, data)
	})
	wg.Go(func() {
		pdfRCA, pdfErr = s.runEvidence(ctx, prompt, data, links)
	})
	if r := wg.WaitAndRecover(); r != nil {
		return nil, fmt.Errorf("analysis pipeline panicked: %v", r.Value)
	}

	if dataErr != nil {
		return nil, dataErr
	}
	if pdfErr != nil {
		return nil, pdfErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &AnalysisResult{DataRCA: dataRCA, PdfRCA: pdfRCA}, nil
}

// runStructured 无数据或模型输出无法解析时返回空原因列表
func (s *DeepAnalysisService) runStructured(ctx context.Context, prompt string, data map[string]interface{}) (map[string]interface{}, error) {
	if len(data) == 0 || s.analyst == nil {
		s.metrics.RecordPipeline(PipelineStructured, OutcomeEmpty)
		return emptyCauses(), nil
	}

	raw, err := s.analyst.AnalyzeContext(ctx, prompt, data)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		s.logger.Warn("structured analysis failed", zap.Error(err))
		s.metrics.RecordPipeline(PipelineStructured, OutcomeDegraded)
		return emptyCauses(), nil
	}

	parsed, _, err := analysis.ExtractJSON(raw)
	if err != nil {
		s.logger.Warn("structured analysis output unparseable", zap.Error(err))
		s.metrics.RecordPipeline(PipelineStructured, OutcomeDegraded)
		return emptyCauses(), nil
	}

	s.metrics.RecordPipeline(PipelineStructured, OutcomeOK)
	return parsed, nil
}

// runEvidence 资产 -> 关联文档 -> 向量检索 -> 排序截断 -> 证据综合
func (s *DeepAnalysisService) runEvidence(ctx context.Context, prompt string, data map[string]interface{}, links repository.DocumentLinkRepository) (map[string]interface{}, error) {
	assetIDs := ExtractAssetIDs(data)
	if len(assetIDs) == 0 || links == nil {
		s.metrics.RecordPipeline(PipelineEvidence, OutcomeEmpty)
		return emptyEvidence(), nil
	}

	docIDs := uniqueDocIDs(s.links.LinksForAssets(ctx, links, assetIDs))

	alias := ""
	if s.aliases != nil {
		alias = s.aliases.ActiveAlias()
	}
	if len(docIDs) == 0 || alias == "" || s.search == nil {
		s.logger.Debug("evidence search skipped",
			zap.Int("documents", len(docIDs)),
			zap.Bool("has_alias", alias != ""))
		s.metrics.RecordPipeline(PipelineEvidence, OutcomeEmpty)
		return emptyEvidence(), nil
	}

	found := s.search.SearchAll(ctx, docIDs, alias, prompt)
	s.metrics.RecordFanOut(len(found.ProcessedCollections), found.NotFound)

	top := knowledge.RankChunks(found.Chunks, s.resultLimit)
	if len(top) == 0 || s.synthesizer == nil {
		s.metrics.RecordPipeline(PipelineEvidence, OutcomeEmpty)
		return emptyEvidence(), nil
	}

	raw, err := s.synthesizer.Synthesize(ctx, prompt, top)
	if err != nil {
		if isFatal(ctx, err) {
			return nil, err
		}
		s.logger.Warn("evidence synthesis failed", zap.Error(err))
		s.metrics.RecordPipeline(PipelineEvidence, OutcomeDegraded)
		return emptyEvidence(), nil
	}

	parsed, _, err := analysis.ExtractJSON(raw)
	if err != nil {
		s.logger.Warn("evidence synthesis output unparseable", zap.Error(err))
		s.metrics.RecordPipeline(PipelineEvidence, OutcomeDegraded)
		return emptyEvidence(), nil
	}

	s.metrics.RecordPipeline(PipelineEvidence, OutcomeOK)
	return parsed, nil
}

// ExtractAssetIDs 从 data["Asset"] 取资产ID，依次尝试 _id、id、assetId
func ExtractAssetIDs(data map[string]interface{}) []string {
	raw, ok := data["Asset"]
	if !ok || raw == nil {
		return nil
	}

	var records []interface{}
	switch v := raw.(type) {
	case []interface{}:
		records = v
	default:
		records = []interface{}{v}
	}

	var ids []string
	for _, rec := range records {
		m, ok := rec.(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range []string{"_id", "id", "assetId"} {
			if id := idString(m[key]); id != "" {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		if id == 0 {
			return ""
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case map[string]interface{}:
		oid, _ := id["$oid"].(string)
		return oid
	default:
		return fmt.Sprint(id)
	}
}

func uniqueDocIDs(links map[string][]string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, docIDs := range links {
		for _, id := range docIDs {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func isFatal(ctx context.Context, err error) bool {
	return apperrors.IsFatal(err) || ctx.Err() != nil
}

func emptyCauses() map[string]interface{} {
	return map[string]interface{}{"causes": []interface{}{}}
}

func emptyEvidence() map[string]interface{} {
	return map[string]interface{}{
		"causes": []interface{}{},
		"sources": map[string]interface{}{
			"urls":         []interface{}{},
			"page_numbers": []interface{}{},
		},
	}
}
