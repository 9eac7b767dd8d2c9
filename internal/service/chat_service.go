package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/intent"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/llm"
	"nft-sage-go/pkg/log"

	"github.com/gorilla/websocket"
)

var (
	// ErrEmptyMessage 表示用户消息为空或只有空白。
	ErrEmptyMessage = errors.New("message is empty")
	// ErrEmptyResponse 表示模型没有返回任何内容。
	ErrEmptyResponse = errors.New("llm returned an empty response")
	// ErrStopped 表示用户在回答完成前中止了流式输出，本轮不写入记忆。
	ErrStopped = errors.New("response stopped by user")
)

// ChatRequest 是一次用户提问。
type ChatRequest struct {
	Message  string
	UserID   string
	Platform string
}

func (r ChatRequest) key() model.ConversationKey {
	return model.NewConversationKey(r.UserID, r.Platform)
}

// ChatReply 是一次成功的回答。
type ChatReply struct {
	Response    string            `json:"response"`
	Intent      model.IntentType  `json:"intent"`
	Confidence  float64           `json:"confidence"`
	Interaction model.Interaction `json:"-"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Handle 生成完整回答，成功后写入会话记忆。
	Handle(ctx context.Context, req ChatRequest) (*ChatReply, error)
	// Stream 将回答以 {"chunk":...} 分块写入 w，最后发送完成通知。
	Stream(ctx context.Context, req ChatRequest, w llm.MessageWriter, shouldStop func() bool) (*ChatReply, error)
}

type chatService struct {
	classifier    intent.Classifier
	conversations ConversationService
	provider      analytics.Provider
	llmClient     llm.Client
	window        int
	prompt        config.LLMPromptConfig
	generation    config.LLMGenerationConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(classifier intent.Classifier, conversations ConversationService, provider analytics.Provider,
	llmClient llm.Client, llmCfg config.LLMConfig, memCfg config.MemoryConfig) ChatService {
	return &chatService{
		classifier:    classifier,
		conversations: conversations,
		provider:      provider,
		llmClient:     llmClient,
		window:        memCfg.ContextWindow,
		prompt:        llmCfg.Prompt,
		generation:    llmCfg.Generation,
	}
}

// prepared 是调用模型前准备好的全部输入。
type prepared struct {
	key      model.ConversationKey
	query    string
	intent   *model.Intent
	messages []llm.Message
}

// prepare 依次完成：意图分类、读取会话上下文、拉取分析数据、组装消息。
func (s *chatService) prepare(ctx context.Context, req ChatRequest) (*prepared, error) {
	query := strings.TrimSpace(req.Message)
	if query == "" {
		return nil, ErrEmptyMessage
	}
	key := req.key()

	in, err := s.classifier.Classify(ctx, query)
	if err != nil || !in.Valid() {
		log.Warnw("意图分类失败，按一般问题处理", "key", key.String(), "error", err)
		in = &model.Intent{Type: model.IntentGeneralQuestion, Confidence: 0.5}
	}

	convCtx := s.conversations.Context(key, s.window)
	data := s.gatherData(ctx, in)
	systemMsg := buildSystemMessage(s.prompt, buildProfile(convCtx), data)

	return &prepared{
		key:      key,
		query:    query,
		intent:   in,
		messages: composeMessages(systemMsg, convCtx.RecentInteractions, query),
	}, nil
}

// gatherData 按意图拉取分析数据。数据源失败不影响回答，只是少了数据块。
func (s *chatService) gatherData(ctx context.Context, in *model.Intent) turnData {
	var data turnData
	if s.provider == nil {
		return data
	}
	chain := in.EntityString(model.EntityChain)

	switch in.Type {
	case model.IntentWalletAnalysis:
		addr := in.EntityString(model.EntityWalletAddress)
		if addr == "" {
			addr = in.EntityString(model.EntityENSName)
		}
		if addr != "" {
			r, err := s.provider.WalletReport(ctx, addr, chain)
			if err != nil {
				log.Warnw("获取钱包数据失败", "address", addr, "error", err)
			}
			data.Wallet = r
		}
	case model.IntentCollectionAnalysis, model.IntentRiskAssessment:
		if slug := in.EntityString(model.EntityCollection); slug != "" {
			r, err := s.provider.CollectionReport(ctx, slug)
			if err != nil {
				log.Warnw("获取合集数据失败", "slug", slug, "error", err)
			}
			data.Collection = r
		}
	case model.IntentMarketInsights:
		r, err := s.provider.MarketOverview(ctx)
		if err != nil {
			log.Warnw("获取市场数据失败", "error", err)
		}
		data.Market = r
	}
	return data
}

func (s *chatService) finish(ctx context.Context, p *prepared, answer string) (*ChatReply, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, ErrEmptyResponse
	}
	it := s.conversations.Record(ctx, p.key, p.query, answer, p.intent)
	return &ChatReply{
		Response:    answer,
		Intent:      p.intent.Type,
		Confidence:  p.intent.Confidence,
		Interaction: it,
	}, nil
}

func (s *chatService) Handle(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	answer, err := s.llmClient.Complete(ctx, p.messages, buildGenerationParams(s.generation))
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}
	return s.finish(ctx, p, answer)
}

func (s *chatService) Stream(ctx context.Context, req ChatRequest, w llm.MessageWriter, shouldStop func() bool) (*ChatReply, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	// 拦截 writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: w, writer: answerBuilder, shouldStop: shouldStop}
	if err := s.llmClient.StreamChatMessages(ctx, p.messages, buildGenerationParams(s.generation), interceptor); err != nil {
		return nil, fmt.Errorf("stream response: %w", err)
	}
	if interceptor.stopped {
		sendCompletion(w, nil, "stopped")
		return nil, ErrStopped
	}

	reply, err := s.finish(ctx, p, answerBuilder.String())
	if err != nil {
		sendCompletion(w, nil, "empty")
		return nil, err
	}
	sendCompletion(w, reply, "finished")
	return reply, nil
}

// wsWriterInterceptor 是对 websocket 写入端的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       llm.MessageWriter
	writer     *strings.Builder
	shouldStop func() bool
	// stopped 记录停止标志是否生效过，此后的分块全部丢弃
	stopped bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.stopped || (w.shouldStop != nil && w.shouldStop()) {
		w.stopped = true
		return nil
	}
	w.writer.Write(data)
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON。status 为 finished、stopped 或 empty，
// 只有 finished 时 reply 非空。
func sendCompletion(w llm.MessageWriter, reply *ChatReply, status string) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    status,
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	if reply != nil {
		notif["intent"] = reply.Intent
		notif["confidence"] = reply.Confidence
	}
	b, _ := json.Marshal(notif)
	_ = w.WriteMessage(websocket.TextMessage, b)
}
