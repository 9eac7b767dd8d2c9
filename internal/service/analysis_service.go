package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/llm"
	"nft-sage-go/pkg/log"
)

// ErrMissingTarget 表示分析请求缺少钱包地址或合集 slug。
var ErrMissingTarget = errors.New("analysis target is required")

// AnalysisRequest 是一次显式的分析请求。UserID 为空时不写入会话记忆。
type AnalysisRequest struct {
	Target   string
	Chain    string
	UserID   string
	Platform string
}

// WalletAnalysis 是钱包分析的结果。
type WalletAnalysis struct {
	Report    *model.WalletReport `json:"report"`
	Narrative string              `json:"narrative"`
}

// CollectionAnalysis 是合集分析的结果。
type CollectionAnalysis struct {
	Report    *model.CollectionReport `json:"report"`
	Narrative string                  `json:"narrative"`
}

// MarketAnalysis 是市场概况的结果。
type MarketAnalysis struct {
	Overview  *model.MarketOverview `json:"overview"`
	Narrative string                `json:"narrative"`
}

// AnalysisService 定义了结构化分析操作，供 REST 接口与机器人命令使用。
type AnalysisService interface {
	Wallet(ctx context.Context, req AnalysisRequest) (*WalletAnalysis, error)
	Collection(ctx context.Context, req AnalysisRequest) (*CollectionAnalysis, error)
	Market(ctx context.Context, req AnalysisRequest) (*MarketAnalysis, error)
}

type analysisService struct {
	provider      analytics.Provider
	conversations ConversationService
	llmClient     llm.Client
	window        int
	prompt        config.LLMPromptConfig
	generation    config.LLMGenerationConfig
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(provider analytics.Provider, conversations ConversationService, llmClient llm.Client,
	llmCfg config.LLMConfig, memCfg config.MemoryConfig) AnalysisService {
	return &analysisService{
		provider:      provider,
		conversations: conversations,
		llmClient:     llmClient,
		window:        memCfg.ContextWindow,
		prompt:        llmCfg.Prompt,
		generation:    llmCfg.Generation,
	}
}

func (s *analysisService) Wallet(ctx context.Context, req AnalysisRequest) (*WalletAnalysis, error) {
	addr := strings.TrimSpace(req.Target)
	if addr == "" {
		return nil, ErrMissingTarget
	}
	report, err := s.provider.WalletReport(ctx, addr, req.Chain)
	if err != nil {
		return nil, fmt.Errorf("wallet report: %w", err)
	}
	query := "Analyze wallet " + addr
	in := &model.Intent{
		Type:       model.IntentWalletAnalysis,
		Confidence: 1,
		Entities:   map[string]any{model.EntityWalletAddress: strings.ToLower(addr)},
	}
	narrative := s.narrate(ctx, req, query, in, turnData{Wallet: report}, FormatWalletReport(report))
	return &WalletAnalysis{Report: report, Narrative: narrative}, nil
}

func (s *analysisService) Collection(ctx context.Context, req AnalysisRequest) (*CollectionAnalysis, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Target))
	if slug == "" {
		return nil, ErrMissingTarget
	}
	report, err := s.provider.CollectionReport(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("collection report: %w", err)
	}
	query := "Analyze collection " + slug
	in := &model.Intent{
		Type:       model.IntentCollectionAnalysis,
		Confidence: 1,
		Entities:   map[string]any{model.EntityCollection: slug},
	}
	narrative := s.narrate(ctx, req, query, in, turnData{Collection: report}, FormatCollectionReport(report))
	return &CollectionAnalysis{Report: report, Narrative: narrative}, nil
}

func (s *analysisService) Market(ctx context.Context, req AnalysisRequest) (*MarketAnalysis, error) {
	overview, err := s.provider.MarketOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("market overview: %w", err)
	}
	in := &model.Intent{Type: model.IntentMarketInsights, Confidence: 1}
	narrative := s.narrate(ctx, req, "Give me a market overview", in, turnData{Market: overview}, FormatMarketOverview(overview))
	return &MarketAnalysis{Overview: overview, Narrative: narrative}, nil
}

// narrate 让模型基于报告生成解读；模型不可用时退回纯文本摘要。
// 有 UserID 时本轮写入会话记忆。
func (s *analysisService) narrate(ctx context.Context, req AnalysisRequest, query string, in *model.Intent, data turnData, fallback string) string {
	key := model.NewConversationKey(req.UserID, req.Platform)
	remember := req.UserID != "" && s.conversations != nil

	profile := buildProfile(model.Context{RiskToleranceEstimate: model.RiskUnknown})
	if remember {
		profile = buildProfile(s.conversations.Context(key, s.window))
	}

	narrative := fallback
	if s.llmClient != nil {
		msgs := composeMessages(buildSystemMessage(s.prompt, profile, data), nil, query)
		out, err := s.llmClient.Complete(ctx, msgs, buildGenerationParams(s.generation))
		if err != nil {
			log.Warnw("生成分析解读失败，使用摘要", "query", query, "error", err)
		} else if out = strings.TrimSpace(out); out != "" {
			narrative = out
		}
	}

	if remember {
		s.conversations.Record(ctx, key, query, narrative, in)
	}
	return narrative
}
