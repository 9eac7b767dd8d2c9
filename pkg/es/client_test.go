package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	mu      sync.Mutex
	created bool
	docs    map[string]map[string]any
	search  map[string]any
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/interactions" && r.Method == http.MethodHead:
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.URL.Path == "/interactions" && r.Method == http.MethodPut:
		f.created = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasPrefix(r.URL.Path, "/interactions/_doc/"):
		var doc map[string]any
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.docs[strings.TrimPrefix(r.URL.Path, "/interactions/_doc/")] = doc
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case r.URL.Path == "/interactions/_search":
		_ = json.NewDecoder(r.Body).Decode(&f.search)
		_, _ = io.WriteString(w, `{"hits":{"hits":[{"_score":3.5,"_source":{"interaction_id":"i1","conversation_key":"web:u1","user_query":"floor of azuki"}}]}}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestIndexer(t *testing.T) {
	fake := &fakeES{docs: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx, err := NewIndexer(config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "interactions"})
	require.NoError(t, err)
	assert.True(t, fake.created)

	key := model.NewConversationKey("u1", "web")
	it := model.Interaction{
		ID:         "i1",
		Timestamp:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		UserQuery:  "floor of azuki",
		AIResponse: "about 5 ETH",
		Intent:     &model.Intent{Type: model.IntentCollectionAnalysis, Confidence: 0.8},
	}
	require.NoError(t, idx.IndexInteraction(context.Background(), key, it))
	require.Contains(t, fake.docs, "i1")
	assert.Equal(t, "web:u1", fake.docs["i1"]["conversation_key"])
	assert.Equal(t, "collection_analysis", fake.docs["i1"]["intent_type"])

	hits, err := idx.Search(context.Background(), "azuki", "web:u1", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "i1", hits[0].InteractionID)
	assert.InDelta(t, 3.5, hits[0].Score, 1e-9)
	assert.EqualValues(t, 20, fake.search["size"])

	boolQuery := fake.search["query"].(map[string]any)["bool"].(map[string]any)
	assert.Contains(t, boolQuery, "filter")
}

func TestIndexer_ExistingIndex(t *testing.T) {
	fake := &fakeES{created: true, docs: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := NewIndexer(config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "interactions"})
	require.NoError(t, err)
}
