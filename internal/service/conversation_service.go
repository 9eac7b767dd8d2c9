// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nft-sage-go/internal/memory"
	"nft-sage-go/internal/model"
	"nft-sage-go/internal/repository"
	"nft-sage-go/pkg/log"
)

// ErrNotConfigured 表示所需的外部组件未在配置中启用。
var ErrNotConfigured = errors.New("feature not configured")

// sideEffectTimeout 限制回复成功后归档、审计、索引与发布的总耗时。
const sideEffectTimeout = 5 * time.Second

// InteractionIndexer 由 es.Indexer 实现。
type InteractionIndexer interface {
	IndexInteraction(ctx context.Context, key model.ConversationKey, it model.Interaction) error
	Search(ctx context.Context, query, conversationKey string, size int) ([]model.SearchHit, error)
}

// InteractionPublisher 由 kafka.Producer 实现。
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, key model.ConversationKey, it model.Interaction) error
}

// SnapshotExporter 由 storage.ObjectStore 实现。
type SnapshotExporter interface {
	PutJSON(ctx context.Context, objectName string, v any) (int64, error)
	PresignedURL(ctx context.Context, objectName string) (string, error)
}

// ConversationDeps 汇集会话服务的可选外部依赖，nil 表示未启用。
type ConversationDeps struct {
	Archive     repository.ConversationRepository
	Transcripts repository.TranscriptRepository
	Indexer     InteractionIndexer
	Publisher   InteractionPublisher
	Exporter    SnapshotExporter
}

// ExportResult 是一次快照导出的结果。
type ExportResult struct {
	Object        string `json:"object"`
	Size          int64  `json:"size"`
	Conversations int    `json:"conversations"`
	URL           string `json:"url"`
}

// MemoryStats 是会话记忆的概况。
type MemoryStats struct {
	Conversations int            `json:"conversations"`
	Interactions  int            `json:"interactions"`
	Lifetime      int            `json:"lifetimeInteractions"`
	Cap           int            `json:"cap"`
	ByPlatform    map[string]int `json:"byPlatform"`
}

// ConversationService 定义了会话记忆的业务操作。
// 内存中的 Store 是唯一的事实来源，外部组件的失败只记录日志。
type ConversationService interface {
	Record(ctx context.Context, key model.ConversationKey, query, response string, intent *model.Intent) model.Interaction
	ReplayInteraction(ctx context.Context, key model.ConversationKey, it model.Interaction) error
	Context(key model.ConversationKey, window int) model.Context
	History(key model.ConversationKey, limit int) []model.Interaction
	Clear(ctx context.Context, key model.ConversationKey) bool
	Sweep(ctx context.Context, maxAge time.Duration) int
	Warm(ctx context.Context) (int, error)
	Export(ctx context.Context) (*ExportResult, error)
	Stats() MemoryStats
	Transcripts(ctx context.Context, f repository.TranscriptFilter) ([]model.TranscriptDTO, error)
	Search(ctx context.Context, query string, key *model.ConversationKey, size int) ([]model.SearchHit, error)
}

type conversationService struct {
	store *memory.Store
	deps  ConversationDeps
	now   func() time.Time
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(store *memory.Store, deps ConversationDeps) ConversationService {
	return &conversationService{store: store, deps: deps, now: time.Now}
}

// Record 追加一次成功的问答，然后同步到各个外部组件。
func (s *conversationService) Record(ctx context.Context, key model.ConversationKey, query, response string, intent *model.Intent) model.Interaction {
	it := s.store.AddInteraction(key, query, response, intent)

	// 使用独立上下文：即使原始请求已被取消，也希望成功生成的答案被持久化
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	s.archive(sctx, key)
	if s.deps.Transcripts != nil {
		t := model.TranscriptFromInteraction(key, it)
		if err := s.deps.Transcripts.Create(sctx, &t); err != nil {
			log.Errorw("保存问答审计记录失败", "key", key.String(), "error", err)
		}
	}
	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.IndexInteraction(sctx, key, it); err != nil {
			log.Errorw("索引交互失败", "key", key.String(), "error", err)
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishInteraction(sctx, key, it); err != nil {
			log.Errorw("发布交互事件失败", "key", key.String(), "error", err)
		}
	}
	return it
}

// ReplayInteraction 回放其他实例产生的交互。外部存储已由产生方写入，这里只更新内存。
func (s *conversationService) ReplayInteraction(_ context.Context, key model.ConversationKey, it model.Interaction) error {
	if it.UserQuery == "" && it.AIResponse == "" {
		return fmt.Errorf("empty interaction %q", it.ID)
	}
	s.store.Record(key, it)
	return nil
}

func (s *conversationService) archive(ctx context.Context, key model.ConversationKey) {
	if s.deps.Archive == nil {
		return
	}
	snap, ok := s.store.Snapshot(key)
	var err error
	if ok {
		err = s.deps.Archive.Save(ctx, snap)
	} else {
		err = s.deps.Archive.Delete(ctx, key)
	}
	if err != nil {
		log.Errorw("更新会话归档失败", "key", key.String(), "error", err)
	}
}

func (s *conversationService) Context(key model.ConversationKey, window int) model.Context {
	return s.store.GetContext(key, window)
}

func (s *conversationService) History(key model.ConversationKey, limit int) []model.Interaction {
	return s.store.GetHistory(key, limit)
}

// Clear 删除内存中的会话与其归档。问答审计记录保留。
func (s *conversationService) Clear(ctx context.Context, key model.ConversationKey) bool {
	removed := s.store.Clear(key)
	if s.deps.Archive != nil {
		if err := s.deps.Archive.Delete(ctx, key); err != nil {
			log.Errorw("删除会话归档失败", "key", key.String(), "error", err)
		}
	}
	log.Infow("会话已清除", "key", key.String(), "existed", removed)
	return removed
}

// Sweep 清理过期交互，并让归档与内存保持一致。
func (s *conversationService) Sweep(ctx context.Context, maxAge time.Duration) int {
	before := s.store.Keys()
	removed := s.store.Sweep(maxAge)
	if removed > 0 && s.deps.Archive != nil {
		for _, k := range before {
			s.archive(ctx, k)
		}
	}
	log.Infow("会话清理完成", "removed", removed, "conversations", s.store.Len())
	return removed
}

// Warm 从 Redis 归档恢复全部会话，返回恢复的会话数。
func (s *conversationService) Warm(ctx context.Context) (int, error) {
	if s.deps.Archive == nil {
		return 0, nil
	}
	snaps, err := s.deps.Archive.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load archived conversations: %w", err)
	}
	for _, snap := range snaps {
		s.store.Restore(snap)
	}
	log.Infof("已从归档恢复 %d 个会话", len(snaps))
	return len(snaps), nil
}

// Export 将全部会话快照上传到对象存储并返回限时下载链接。
func (s *conversationService) Export(ctx context.Context) (*ExportResult, error) {
	if s.deps.Exporter == nil {
		return nil, ErrNotConfigured
	}
	snaps := s.store.SnapshotAll()
	object := fmt.Sprintf("snapshots/memory-%s.json", s.now().UTC().Format("20060102T150405Z"))
	size, err := s.deps.Exporter.PutJSON(ctx, object, snaps)
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	url, err := s.deps.Exporter.PresignedURL(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("presign snapshot: %w", err)
	}
	return &ExportResult{Object: object, Size: size, Conversations: len(snaps), URL: url}, nil
}

func (s *conversationService) Stats() MemoryStats {
	stats := MemoryStats{Cap: s.store.Cap(), ByPlatform: map[string]int{}}
	for _, snap := range s.store.SnapshotAll() {
		stats.Conversations++
		stats.Interactions += len(snap.Interactions)
		stats.Lifetime += snap.TotalInteractions
		stats.ByPlatform[string(snap.Key.Platform)]++
	}
	return stats
}

func (s *conversationService) Transcripts(ctx context.Context, f repository.TranscriptFilter) ([]model.TranscriptDTO, error) {
	if s.deps.Transcripts == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.deps.Transcripts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]model.TranscriptDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDTO())
	}
	return out, nil
}

func (s *conversationService) Search(ctx context.Context, query string, key *model.ConversationKey, size int) ([]model.SearchHit, error) {
	if s.deps.Indexer == nil {
		return nil, ErrNotConfigured
	}
	convKey := ""
	if key != nil {
		convKey = key.String()
	}
	return s.deps.Indexer.Search(ctx, query, convKey, size)
}
