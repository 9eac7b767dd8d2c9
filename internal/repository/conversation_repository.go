// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nft-sage-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const snapshotKeyPrefix = "memory:"

// ConversationRepository 在 Redis 中归档会话快照，用于进程重启后恢复记忆。
type ConversationRepository interface {
	Save(ctx context.Context, snap model.LogSnapshot) error
	Load(ctx context.Context, key model.ConversationKey) (*model.LogSnapshot, error)
	LoadAll(ctx context.Context) ([]model.LogSnapshot, error)
	Delete(ctx context.Context, key model.ConversationKey) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。ttl 之后未更新的快照自动过期。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func snapshotKey(key model.ConversationKey) string {
	return snapshotKeyPrefix + key.String()
}

// Save 覆盖写入一个会话快照。
func (r *redisConversationRepository) Save(ctx context.Context, snap model.LogSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.redisClient.Set(ctx, snapshotKey(snap.Key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load 读取单个会话快照，不存在时返回 nil。
func (r *redisConversationRepository) Load(ctx context.Context, key model.ConversationKey) (*model.LogSnapshot, error) {
	data, err := r.redisClient.Get(ctx, snapshotKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// LoadAll 通过 SCAN 读取全部会话快照，损坏或已过期的条目被跳过。
func (r *redisConversationRepository) LoadAll(ctx context.Context) ([]model.LogSnapshot, error) {
	var snaps []model.LogSnapshot
	iter := r.redisClient.Scan(ctx, 0, snapshotKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		data, err := r.redisClient.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		snap, err := snapshotFromEntry(iter.Val(), data)
		if err != nil {
			continue
		}
		snaps = append(snaps, *snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot keys: %w", err)
	}
	return snaps, nil
}

// Delete 删除会话快照。
func (r *redisConversationRepository) Delete(ctx context.Context, key model.ConversationKey) error {
	if err := r.redisClient.Del(ctx, snapshotKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func decodeSnapshot(data []byte) (*model.LogSnapshot, error) {
	var snap model.LogSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// snapshotFromEntry 解码一条扫描到的快照。快照体里保存的键优先，
// Redis 键在平台名含冒号时有歧义，只在旧数据缺少键时兜底。
func snapshotFromEntry(redisKey string, data []byte) (*model.LogSnapshot, error) {
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if snap.Key == (model.ConversationKey{}) {
		if key, ok := ParseSnapshotKey(redisKey); ok {
			snap.Key = key
		}
	}
	return snap, nil
}

// ParseSnapshotKey 从 Redis 键还原会话键。用户 ID 中可以包含冒号。
func ParseSnapshotKey(redisKey string) (model.ConversationKey, bool) {
	rest, ok := strings.CutPrefix(redisKey, snapshotKeyPrefix)
	if !ok {
		return model.ConversationKey{}, false
	}
	platform, user, ok := strings.Cut(rest, ":")
	if !ok {
		return model.ConversationKey{}, false
	}
	return model.NewConversationKey(user, platform), true
}
