package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/intent"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(llmClient *fakeLLM) (ChatService, ConversationService) {
	conversations, _ := newTestConversations(ConversationDeps{})
	llmCfg := config.LLMConfig{Prompt: config.LLMPromptConfig{Rules: "You are NFT Sage."}}
	chat := NewChatService(intent.NewKeywordClassifier(), conversations, analytics.NewDemoProvider(7, "ethereum"),
		llmClient, llmCfg, config.MemoryConfig{ContextWindow: 10})
	return chat, conversations
}

func TestChatService_HandleRecordsOnSuccess(t *testing.T) {
	llmClient := &fakeLLM{chunks: []string{"Azuki floor ", "is about 5 ETH."}}
	chat, conversations := newTestChat(llmClient)
	req := ChatRequest{Message: "What is the floor price of Azuki?", UserID: "u1", Platform: "web"}

	reply, err := chat.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Azuki floor is about 5 ETH.", reply.Response)
	assert.Equal(t, model.IntentCollectionAnalysis, reply.Intent)
	assert.InDelta(t, 0.8, reply.Confidence, 1e-9)

	msgs := llmClient.lastCall()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are NFT Sage.")
	assert.Contains(t, msgs[0].Content, "New user")
	assert.Contains(t, msgs[0].Content, `"slug": "azuki"`)
	assert.Contains(t, msgs[0].Content, demoDisclaimer)
	assert.Equal(t, "What is the floor price of Azuki?", msgs[1].Content)

	key := model.NewConversationKey("u1", "web")
	c := conversations.Context(key, 0)
	assert.Equal(t, 1, c.TotalInteractions)
	assert.Equal(t, []model.IntentType{model.IntentCollectionAnalysis}, c.TopIntentTypes)

	// 第二轮带上历史
	_, err = chat.Handle(context.Background(), ChatRequest{Message: "and the market?", UserID: "u1", Platform: "web"})
	require.NoError(t, err)
	msgs = llmClient.lastCall()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Content, "Returning user: 1 interactions")
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "Azuki floor is about 5 ETH.", msgs[2].Content)
}

func TestChatService_FailuresDoNotTouchMemory(t *testing.T) {
	key := model.NewConversationKey("u1", "discord")

	t.Run("empty message", func(t *testing.T) {
		chat, conversations := newTestChat(&fakeLLM{chunks: []string{"x"}})
		_, err := chat.Handle(context.Background(), ChatRequest{Message: "   ", UserID: "u1", Platform: "discord"})
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.False(t, conversations.Context(key, 0).HasHistory)
	})

	t.Run("llm error", func(t *testing.T) {
		chat, conversations := newTestChat(&fakeLLM{err: errors.New("timeout")})
		_, err := chat.Handle(context.Background(), ChatRequest{Message: "hello", UserID: "u1", Platform: "discord"})
		assert.Error(t, err)
		assert.False(t, conversations.Context(key, 0).HasHistory)
	})

	t.Run("empty answer", func(t *testing.T) {
		chat, conversations := newTestChat(&fakeLLM{chunks: []string{" ", "\n"}})
		_, err := chat.Handle(context.Background(), ChatRequest{Message: "hello", UserID: "u1", Platform: "discord"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
		assert.False(t, conversations.Context(key, 0).HasHistory)
	})
}

func TestChatService_Stream(t *testing.T) {
	chat, conversations := newTestChat(&fakeLLM{chunks: []string{"Market ", "looks ", "neutral."}})
	frames := &recordedFrames{}

	reply, err := chat.Stream(context.Background(), ChatRequest{Message: "market trend this week", UserID: "u2", Platform: "web"}, frames, nil)
	require.NoError(t, err)
	assert.Equal(t, "Market looks neutral.", reply.Response)

	require.Len(t, frames.frames, 4)
	var chunk map[string]string
	require.NoError(t, json.Unmarshal([]byte(frames.frames[0]), &chunk))
	assert.Equal(t, "Market ", chunk["chunk"])

	var done map[string]any
	require.NoError(t, json.Unmarshal([]byte(frames.frames[3]), &done))
	assert.Equal(t, "completion", done["type"])
	assert.Equal(t, "finished", done["status"])
	assert.Equal(t, "market_insights", done["intent"])

	assert.Len(t, conversations.History(model.NewConversationKey("u2", "web"), 0), 1)
}

func TestChatService_StreamStoppedBeforeFirstChunk(t *testing.T) {
	chat, conversations := newTestChat(&fakeLLM{chunks: []string{"a", "b"}})
	frames := &recordedFrames{}

	_, err := chat.Stream(context.Background(), ChatRequest{Message: "hi", UserID: "u3", Platform: "web"}, frames, func() bool { return true })
	assert.ErrorIs(t, err, ErrStopped)
	require.Len(t, frames.frames, 1)
	assert.True(t, strings.Contains(frames.frames[0], `"status":"stopped"`))
	assert.Empty(t, conversations.History(model.NewConversationKey("u3", "web"), 0))
}

func TestChatService_StreamStoppedMidAnswer(t *testing.T) {
	chat, conversations := newTestChat(&fakeLLM{chunks: []string{"The wallet ", "is ", "fine."}})
	frames := &recordedFrames{}
	sent := 0
	stopAfterFirst := func() bool {
		sent++
		return sent > 1
	}

	reply, err := chat.Stream(context.Background(), ChatRequest{Message: "is my wallet ok", UserID: "u4", Platform: "web"}, frames, stopAfterFirst)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Nil(t, reply)

	require.Len(t, frames.frames, 2)
	assert.Contains(t, frames.frames[0], "The wallet ")
	var done map[string]any
	require.NoError(t, json.Unmarshal([]byte(frames.frames[1]), &done))
	assert.Equal(t, "stopped", done["status"])
	assert.NotContains(t, done, "intent")

	// 被中止的半截回答不进入会话记忆
	assert.Empty(t, conversations.History(model.NewConversationKey("u4", "web"), 0))
	assert.False(t, conversations.Context(model.NewConversationKey("u4", "web"), 0).HasHistory)
}

func TestChatService_StreamEmptyAnswer(t *testing.T) {
	chat, conversations := newTestChat(&fakeLLM{chunks: []string{"  "}})
	frames := &recordedFrames{}

	_, err := chat.Stream(context.Background(), ChatRequest{Message: "hi", UserID: "u5", Platform: "web"}, frames, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	require.Len(t, frames.frames, 2)
	assert.Contains(t, frames.frames[1], `"status":"empty"`)
	assert.Empty(t, conversations.History(model.NewConversationKey("u5", "web"), 0))
}

func TestBuildProfile(t *testing.T) {
	p := buildProfile(model.Context{
		HasHistory:            true,
		TotalInteractions:     12,
		EngagementLevel:       model.EngagementActive,
		TopTopics:             []string{"azuki", "floor price"},
		PreferredAnalysisType: model.IntentCollectionAnalysis,
		RiskToleranceEstimate: model.RiskConservative,
	})
	assert.Equal(t, "Returning user: 12 interactions (active engagement). Frequent topics: azuki, floor price."+
		" Usually asks for collection_analysis. Estimated risk tolerance: conservative.", p)
}

func TestBuildSystemMessage_NoData(t *testing.T) {
	msg := buildSystemMessage(config.LLMPromptConfig{}, "New user, no previous conversation.", turnData{})
	assert.Contains(t, msg, "<<DATA>>\n(no analytics data for this turn)\n<<END>>")
	assert.NotContains(t, msg, demoDisclaimer)
}
