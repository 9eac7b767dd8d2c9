package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompletionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLLMClassifier(url string) *LLMClassifier {
	return NewLLMClassifier(LLMOptions{APIKey: "test-key", BaseURL: url, Model: "test-model", Timeout: 2 * time.Second})
}

func TestLLMClassifier_ParsesFencedJSON(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK,
		"```json\n{\"type\":\"collection_analysis\",\"confidence\":0.87,\"entities\":{\"collection\":\"azuki\",\"chain\":\"\"}}\n```")

	got, err := newTestLLMClassifier(srv.URL).Classify(context.Background(), "how is azuki doing on ethereum")
	require.NoError(t, err)
	assert.Equal(t, model.IntentCollectionAnalysis, got.Type)
	assert.InDelta(t, 0.87, got.Confidence, 1e-9)
	assert.Equal(t, "azuki", got.EntityString(model.EntityCollection))
	// 模型给出空串，由正则补齐
	assert.Equal(t, "ethereum", got.EntityString(model.EntityChain))
}

func TestLLMClassifier_FallsBackOnServerError(t *testing.T) {
	srv := newCompletionServer(t, http.StatusInternalServerError, "")

	got, err := newTestLLMClassifier(srv.URL).Classify(context.Background(), "market trend this week")
	require.NoError(t, err)
	assert.Equal(t, model.IntentMarketInsights, got.Type)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestLLMClassifier_FallsBackOnInvalidIntent(t *testing.T) {
	srv := newCompletionServer(t, http.StatusOK, `{"type":"price_prediction","confidence":0.9}`)

	got, err := newTestLLMClassifier(srv.URL).Classify(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, model.IntentGeneralQuestion, got.Type)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestParseIntent(t *testing.T) {
	_, err := parseIntent("not json")
	assert.Error(t, err)

	_, err = parseIntent(`{"type":"wallet_analysis","confidence":1.5}`)
	assert.Error(t, err)

	got, err := parseIntent(` {"type":" Risk_Assessment ","confidence":0.4} `)
	require.NoError(t, err)
	assert.Equal(t, model.IntentRiskAssessment, got.Type)
	assert.NotNil(t, got.Entities)
}

func TestNew(t *testing.T) {
	c, err := New(config.IntentConfig{Provider: "keyword"}, config.LLMConfig{})
	require.NoError(t, err)
	assert.IsType(t, &KeywordClassifier{}, c)

	c, err = New(config.IntentConfig{Provider: "llm"}, config.LLMConfig{APIKey: "k", BaseURL: "http://localhost", Model: "m"})
	require.NoError(t, err)
	llm, ok := c.(*LLMClassifier)
	require.True(t, ok)
	assert.Equal(t, "m", llm.model)
	assert.Equal(t, 10*time.Second, llm.timeout)

	_, err = New(config.IntentConfig{Provider: "magic"}, config.LLMConfig{})
	assert.Error(t, err)
}
