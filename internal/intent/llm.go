package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/log"

	"github.com/sashabaranov/go-openai"
)

const intentSystemPrompt = `You classify questions sent to an NFT analytics assistant.
Reply with a single JSON object and nothing else:
{"type": one of "wallet_analysis" | "collection_analysis" | "market_insights" | "risk_assessment" | "general_question",
 "confidence": number between 0 and 1,
 "entities": {"wallet_address"?: string, "ens_name"?: string, "collection"?: string, "chain"?: string}}`

var codeFence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// LLMOptions 配置 LLM 分类器。
type LLMOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMClassifier 通过 OpenAI 兼容接口分类，任何失败都回退到关键词分类。
type LLMClassifier struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	fallback *KeywordClassifier
}

// NewLLMClassifier 创建 LLM 分类器。
func NewLLMClassifier(opts LLMOptions) *LLMClassifier {
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &LLMClassifier{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    opts.Model,
		timeout:  opts.Timeout,
		fallback: NewKeywordClassifier(),
	}
}

// Classify 返回 LLM 的分类结果，失败时记录日志并使用关键词分类结果。
func (c *LLMClassifier) Classify(ctx context.Context, text string) (*model.Intent, error) {
	intent, err := c.classifyRemote(ctx, text)
	if err != nil {
		log.Warnw("LLM 意图分类失败，使用关键词分类", "error", err)
		return c.fallback.classify(text), nil
	}
	// 模型漏掉的实体用正则结果补齐
	for k, v := range ExtractEntities(text) {
		if _, ok := intent.Entities[k]; !ok {
			intent.Entities[k] = v
		}
	}
	return intent, nil
}

func (c *LLMClassifier) classifyRemote(ctx context.Context, text string) (*model.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   150,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from llm")
	}
	return parseIntent(resp.Choices[0].Message.Content)
}

func parseIntent(content string) (*model.Intent, error) {
	content = strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	var raw struct {
		Type       string         `json:"type"`
		Confidence float64        `json:"confidence"`
		Entities   map[string]any `json:"entities"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal intent: %w", err)
	}

	intent := &model.Intent{
		Type:       model.IntentType(strings.ToLower(strings.TrimSpace(raw.Type))),
		Confidence: raw.Confidence,
		Entities:   make(map[string]any, len(raw.Entities)),
	}
	if !intent.Valid() {
		return nil, fmt.Errorf("invalid intent %q with confidence %v", raw.Type, raw.Confidence)
	}
	for k, v := range raw.Entities {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		intent.Entities[k] = v
	}
	return intent, nil
}
