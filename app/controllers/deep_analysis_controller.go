package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ironroggers/ops-tracker/internal/logger"
	"github.com/ironroggers/ops-tracker/internal/repository"
	"github.com/ironroggers/ops-tracker/internal/services"
	"go.uber.org/zap"
)

// DeepAnalyzer 深度分析服务
type DeepAnalyzer interface {
	RunDeepAnalysis(ctx context.Context, prompt string, links repository.DocumentLinkRepository) services.DeepAnalysisResponse
}

// DeepAnalysisRequest 请求体
type DeepAnalysisRequest struct {
	Prompt string `json:"prompt"`
}

// DeepAnalysisController 深度分析接口
type DeepAnalysisController struct {
	BaseController
	Service DeepAnalyzer
	Links   repository.DocumentLinkRepository
}

// Analyze POST /api/deep-analysis
// 分析失败时仍返回 200，错误放在响应体的 error 字段
func (c *DeepAnalysisController) Analyze() {
	var req DeepAnalysisRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSONError(http.StatusBadRequest, "prompt is required")
		return
	}
	if c.Service == nil {
		c.JSONError(http.StatusServiceUnavailable, "deep analysis service not available")
		return
	}

	resp := c.Service.RunDeepAnalysis(c.Ctx.Request.Context(), req.Prompt, c.Links)
	if resp.Error != "" {
		logger.Warn("deep analysis returned error",
			zap.String("request_id", c.requestID()),
			zap.String("error", resp.Error))
	}
	c.JSON(http.StatusOK, resp)
}
