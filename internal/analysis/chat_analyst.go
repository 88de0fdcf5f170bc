package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/ironroggers/ops-tracker/internal/errors"
	"github.com/ironroggers/ops-tracker/internal/knowledge"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// StructuredAnalyst 基于结构化记录生成RCA
type StructuredAnalyst interface {
	AnalyzeContext(ctx context.Context, prompt string, data map[string]interface{}) (string, error)
}

// EvidenceSynthesizer 基于文档证据生成RCA
type EvidenceSynthesizer interface {
	Synthesize(ctx context.Context, prompt string, chunks []knowledge.EvidenceChunk) (string, error)
}

// ChatAnalystOptions 单个模型协作者的参数
type ChatAnalystOptions struct {
	Name              string
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	RequestsPerMinute int
}

// ChatAnalyst OpenAI兼容的对话模型，带熔断和限流
type ChatAnalyst struct {
	name        string
	client      *openai.Client
	model       string
	temperature float32
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	logger      *zap.Logger
}

var errAnalystNotConfigured = apperrors.NewSystemError(apperrors.ErrCodeExternalService, "chat model api key not configured")

func NewChatAnalyst(opts ChatAnalystOptions, logger *zap.Logger) *ChatAnalyst {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = opts.Model
	}

	a := &ChatAnalyst{
		name:        opts.Name,
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      logger.With(zap.String("analyst", opts.Name)),
	}

	if key := strings.TrimSpace(opts.APIKey); key != "" {
		cfg := openai.DefaultConfig(key)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		a.client = openai.NewClientWithConfig(cfg)
	}

	if opts.RequestsPerMinute > 0 {
		burst := opts.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), burst)
	}

	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			a.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return a
}

// Ready 是否配置了密钥
func (a *ChatAnalyst) Ready() bool {
	return a.client != nil
}

// AnalyzeContext 实现 StructuredAnalyst
func (a *ChatAnalyst) AnalyzeContext(ctx context.Context, prompt string, data map[string]interface{}) (string, error) {
	return a.Complete(ctx, structuredSystemPrompt, BuildStructuredPrompt(prompt, data))
}

// Synthesize 实现 EvidenceSynthesizer
func (a *ChatAnalyst) Synthesize(ctx context.Context, prompt string, chunks []knowledge.EvidenceChunk) (string, error) {
	return a.Complete(ctx, evidenceSystemPrompt, BuildEvidencePrompt(prompt, chunks))
}

// Complete 发起一次对话补全，返回第一条回复的原文
func (a *ChatAnalyst) Complete(ctx context.Context, system, user string) (string, error) {
	if a.client == nil {
		return "", errAnalystNotConfigured
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	out, err := a.breaker.Execute(func() (interface{}, error) {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: a.temperature,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("chat completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			a.logger.Warn("chat model unavailable, circuit open")
		}
		return "", fmt.Errorf("%s completion: %w", a.name, err)
	}

	a.logger.Debug("chat completion finished", zap.Duration("elapsed", time.Since(start)))
	return out.(string), nil
}
