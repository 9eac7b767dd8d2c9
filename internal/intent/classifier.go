// Package intent 将用户输入分类为固定的几种分析意图。
// 调用方只依赖 model.Intent，不关心具体由哪种分类器产生。
package intent

import (
	"context"
	"fmt"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
)

// Classifier 定义了意图分类器接口。
type Classifier interface {
	Classify(ctx context.Context, text string) (*model.Intent, error)
}

// New 根据配置创建分类器：keyword 为本地规则匹配，llm 为外部模型分类并以规则匹配兜底。
func New(cfg config.IntentConfig, llmCfg config.LLMConfig) (Classifier, error) {
	switch cfg.Provider {
	case "", "keyword":
		return NewKeywordClassifier(), nil
	case "llm":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = llmCfg.APIKey
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = llmCfg.BaseURL
		}
		model := cfg.Model
		if model == "" {
			model = llmCfg.Model
		}
		return NewLLMClassifier(LLMOptions{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Model:   model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown intent provider %q", cfg.Provider)
	}
}
