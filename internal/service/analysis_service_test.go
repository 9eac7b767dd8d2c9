package service

import (
	"context"
	"errors"
	"testing"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notFoundProvider struct{ analytics.Provider }

func (notFoundProvider) CollectionReport(context.Context, string) (*model.CollectionReport, error) {
	return nil, analytics.ErrNotFound
}

func newTestAnalysis(llmClient *fakeLLM, provider analytics.Provider) (AnalysisService, ConversationService) {
	conversations, _ := newTestConversations(ConversationDeps{})
	return NewAnalysisService(provider, conversations, llmClient, config.LLMConfig{}, config.MemoryConfig{ContextWindow: 10}), conversations
}

func TestAnalysisService_WalletRecordsNarrative(t *testing.T) {
	svc, conversations := newTestAnalysis(&fakeLLM{chunks: []string{"Mostly blue chips."}}, analytics.NewDemoProvider(1, "ethereum"))
	addr := "0xAbCdEf0123456789abcdef0123456789ABCDEF01"

	res, err := svc.Wallet(context.Background(), AnalysisRequest{Target: addr, UserID: "u1", Platform: "web"})
	require.NoError(t, err)
	assert.Equal(t, "Mostly blue chips.", res.Narrative)
	assert.Equal(t, analytics.SourceDemo, res.Report.Source)

	h := conversations.History(model.NewConversationKey("u1", "web"), 0)
	require.Len(t, h, 1)
	require.NotNil(t, h[0].Intent)
	assert.Equal(t, model.IntentWalletAnalysis, h[0].Intent.Type)
	assert.InDelta(t, 1.0, h[0].Intent.Confidence, 1e-9)
}

func TestAnalysisService_FallbackNarrative(t *testing.T) {
	svc, conversations := newTestAnalysis(&fakeLLM{err: errors.New("down")}, analytics.NewDemoProvider(1, "ethereum"))

	res, err := svc.Collection(context.Background(), AnalysisRequest{Target: " Azuki "})
	require.NoError(t, err)
	assert.Equal(t, "azuki", res.Report.Slug)
	assert.Contains(t, res.Narrative, "Floor:")
	assert.Contains(t, res.Narrative, "demo data")
	// 没有 UserID 时不写入记忆
	assert.False(t, conversations.Context(model.NewConversationKey("", ""), 0).HasHistory)
}

func TestAnalysisService_Errors(t *testing.T) {
	svc, _ := newTestAnalysis(&fakeLLM{}, notFoundProvider{analytics.NewDemoProvider(1, "")})

	_, err := svc.Wallet(context.Background(), AnalysisRequest{Target: "  "})
	assert.ErrorIs(t, err, ErrMissingTarget)

	_, err = svc.Collection(context.Background(), AnalysisRequest{Target: "nope"})
	assert.ErrorIs(t, err, analytics.ErrNotFound)
}

func TestAnalysisService_Market(t *testing.T) {
	svc, _ := newTestAnalysis(&fakeLLM{chunks: []string{""}}, analytics.NewDemoProvider(1, ""))
	res, err := svc.Market(context.Background(), AnalysisRequest{})
	require.NoError(t, err)
	assert.Contains(t, res.Narrative, "Market sentiment:")
	assert.Len(t, res.Overview.TrendingSlugs, 3)
}
