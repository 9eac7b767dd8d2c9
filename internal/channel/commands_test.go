package channel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"nft-sage-go/internal/memory"
	"nft-sage-go/internal/model"
	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu   sync.Mutex
	err  error
	reqs []service.ChatRequest
}

func (f *fakeChat) Handle(_ context.Context, req service.ChatRequest) (*service.ChatReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &service.ChatReply{Response: "echo: " + req.Message}, nil
}

func (f *fakeChat) Stream(context.Context, service.ChatRequest, llm.MessageWriter, func() bool) (*service.ChatReply, error) {
	return nil, errors.New("not supported")
}

type fakeAnalysis struct {
	err  error
	last service.AnalysisRequest
}

func (f *fakeAnalysis) Wallet(_ context.Context, req service.AnalysisRequest) (*service.WalletAnalysis, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.WalletAnalysis{Narrative: "wallet " + req.Target + " on " + req.Chain}, nil
}

func (f *fakeAnalysis) Collection(_ context.Context, req service.AnalysisRequest) (*service.CollectionAnalysis, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.CollectionAnalysis{Narrative: "collection " + req.Target}, nil
}

func (f *fakeAnalysis) Market(_ context.Context, req service.AnalysisRequest) (*service.MarketAnalysis, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.MarketAnalysis{Narrative: "market is calm"}, nil
}

func newTestRouter(prefix string) (*Router, *fakeChat, *fakeAnalysis, service.ConversationService) {
	chat := &fakeChat{}
	analysis := &fakeAnalysis{}
	conversations := service.NewConversationService(memory.New(memory.DefaultOptions()), service.ConversationDeps{})
	return NewRouter(model.PlatformTelegram, prefix, chat, analysis, conversations), chat, analysis, conversations
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		prefix string
		want   Command
		ok     bool
	}{
		{"/wallet 0xabc base", "/", Command{Name: "wallet", Args: []string{"0xabc", "base"}}, true},
		{"/Market@NftSageBot", "/", Command{Name: "market", Args: []string{}}, true},
		{"  !help  ", "!", Command{Name: "help", Args: []string{}}, true},
		{"what is azuki?", "/", Command{}, false},
		{"/", "/", Command{}, false},
		{"/@bot", "/", Command{}, false},
		{"/help", "", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.text, tt.prefix)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.text)
		}
	}
}

func TestRouter_FreeTextGoesToChat(t *testing.T) {
	r, chat, _, _ := newTestRouter("/")
	assert.Equal(t, "echo: floor of bayc?", r.Handle(context.Background(), "42", "floor of bayc?"))
	require.Len(t, chat.reqs, 1)
	assert.Equal(t, service.ChatRequest{Message: "floor of bayc?", UserID: "42", Platform: "telegram"}, chat.reqs[0])

	chat.err = service.ErrEmptyMessage
	assert.Empty(t, r.Handle(context.Background(), "42", "   "))

	chat.err = errors.New("llm down")
	assert.Equal(t, replyUnavailable, r.Handle(context.Background(), "42", "hello"))
}

func TestRouter_Commands(t *testing.T) {
	r, chat, analysis, conversations := newTestRouter("!")
	ctx := context.Background()

	assert.Contains(t, r.Handle(ctx, "7", "!help"), "!wallet")
	assert.NotContains(t, r.Handle(ctx, "7", "!start"), "{p}")

	assert.Equal(t, "wallet 0xabc on base", r.Handle(ctx, "7", "!wallet 0xabc BASE"))
	assert.Equal(t, "7", analysis.last.UserID)
	assert.Equal(t, "telegram", analysis.last.Platform)
	assert.Contains(t, r.Handle(ctx, "7", "!wallet"), "用法")

	assert.Equal(t, "collection azuki", r.Handle(ctx, "7", "!collection azuki"))
	assert.Equal(t, "market is calm", r.Handle(ctx, "7", "!market"))
	assert.Contains(t, r.Handle(ctx, "7", "!moon"), "未知命令 !moon")
	assert.Empty(t, chat.reqs)

	analysis.err = analytics.ErrNotFound
	assert.Equal(t, replyNotFound, r.Handle(ctx, "7", "!collection nope"))
	analysis.err = errors.New("timeout")
	assert.Equal(t, replyUnavailable, r.Handle(ctx, "7", "!market"))

	key := model.NewConversationKey("7", "telegram")
	conversations.Record(ctx, key, "q", "a", nil)
	assert.Equal(t, "已清除你的会话记忆。", r.Handle(ctx, "7", "!forget"))
	assert.Empty(t, conversations.History(key, 0))
	assert.Equal(t, "目前没有需要清除的会话记忆。", r.Handle(ctx, "7", "!forget"))
}

func TestSplitMessage(t *testing.T) {
	assert.Nil(t, splitMessage("", 10))
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"line one", "line two"}, splitMessage("line one\nline two", 12))

	long := strings.Repeat("地板价", 10)
	parts := splitMessage(long, 16)
	assert.Equal(t, long, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 16)
		assert.True(t, utf8.ValidString(p))
	}
}
