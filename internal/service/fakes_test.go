package service

import (
	"context"
	"errors"
	"sync"

	"nft-sage-go/internal/model"
	"nft-sage-go/internal/repository"
	"nft-sage-go/pkg/llm"

	"github.com/gorilla/websocket"
)

type fakeLLM struct {
	mu     sync.Mutex
	chunks []string
	err    error
	calls  [][]llm.Message
}

func (f *fakeLLM) StreamChatMessages(_ context.Context, messages []llm.Message, _ *llm.GenerationParams, w llm.MessageWriter) error {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := w.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	var out string
	err := f.StreamChatMessages(ctx, messages, gen, writerFunc(func(_ int, b []byte) error {
		out += string(b)
		return nil
	}))
	return out, err
}

func (f *fakeLLM) lastCall() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type writerFunc func(int, []byte) error

func (f writerFunc) WriteMessage(t int, b []byte) error { return f(t, b) }

type recordedFrames struct {
	frames []string
}

func (r *recordedFrames) WriteMessage(_ int, b []byte) error {
	r.frames = append(r.frames, string(b))
	return nil
}

type fakeArchive struct {
	mu      sync.Mutex
	saved   map[model.ConversationKey]model.LogSnapshot
	deleted []model.ConversationKey
	err     error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{saved: map[model.ConversationKey]model.LogSnapshot{}}
}

func (a *fakeArchive) Save(_ context.Context, snap model.LogSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.saved[snap.Key] = snap
	return nil
}

func (a *fakeArchive) Load(_ context.Context, key model.ConversationKey) (*model.LogSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.saved[key]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (a *fakeArchive) LoadAll(_ context.Context) ([]model.LogSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.LogSnapshot, 0, len(a.saved))
	for _, s := range a.saved {
		out = append(out, s)
	}
	return out, nil
}

func (a *fakeArchive) Delete(_ context.Context, key model.ConversationKey) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.saved, key)
	a.deleted = append(a.deleted, key)
	return nil
}

type fakeTranscripts struct {
	rows []model.Transcript
	err  error
}

func (f *fakeTranscripts) Create(_ context.Context, t *model.Transcript) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, *t)
	return nil
}

func (f *fakeTranscripts) List(_ context.Context, filter repository.TranscriptFilter) ([]model.Transcript, error) {
	var out []model.Transcript
	for _, r := range f.rows {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeIndexer struct {
	indexed  []model.InteractionDocument
	lastKey  string
	lastSize int
}

func (f *fakeIndexer) IndexInteraction(_ context.Context, key model.ConversationKey, it model.Interaction) error {
	f.indexed = append(f.indexed, model.NewInteractionDocument(key, it))
	return nil
}

func (f *fakeIndexer) Search(_ context.Context, query, conversationKey string, size int) ([]model.SearchHit, error) {
	f.lastKey, f.lastSize = conversationKey, size
	var hits []model.SearchHit
	for _, d := range f.indexed {
		hits = append(hits, model.SearchHit{InteractionDocument: d, Score: 1})
	}
	return hits, nil
}

type fakePublisher struct {
	events []model.Interaction
}

func (f *fakePublisher) PublishInteraction(_ context.Context, _ model.ConversationKey, it model.Interaction) error {
	f.events = append(f.events, it)
	return errors.New("broker unavailable")
}

type fakeExporter struct {
	objects map[string]any
}

func (f *fakeExporter) PutJSON(_ context.Context, name string, v any) (int64, error) {
	if f.objects == nil {
		f.objects = map[string]any{}
	}
	f.objects[name] = v
	return 123, nil
}

func (f *fakeExporter) PresignedURL(_ context.Context, name string) (string, error) {
	return "https://minio.local/" + name + "?sig=x", nil
}
