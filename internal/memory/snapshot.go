package memory

import (
	"nft-sage-go/internal/model"
)

// Snapshot 导出单个会话的完整状态。会话不存在时第二个返回值为 false。
func (s *Store) Snapshot(key Key) (model.LogSnapshot, bool) {
	l := s.lookup(key)
	if l == nil {
		return model.LogSnapshot{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return model.LogSnapshot{}, false
	}
	return l.snapshot(key), true
}

// SnapshotAll 导出全部会话。每个会话各自一致，会话之间不保证是同一时刻。
func (s *Store) SnapshotAll() []model.LogSnapshot {
	keys := s.Keys()
	out := make([]model.LogSnapshot, 0, len(keys))
	for _, k := range keys {
		if snap, ok := s.Snapshot(k); ok {
			out = append(out, snap)
		}
	}
	return out
}

func (l *conversationLog) snapshot(key Key) model.LogSnapshot {
	snap := model.LogSnapshot{
		Key:                   key,
		Interactions:          tail(l.interactions, len(l.interactions)),
		TotalInteractions:     l.total,
		TopicFrequency:        make(map[string]model.CountStat, len(l.topics)),
		IntentTypeFrequency:   make(map[model.IntentType]model.CountStat, len(l.intents)),
		LastInteractionTime:   l.lastTime,
		RiskToleranceEstimate: l.risk,
	}
	for k, v := range l.topics {
		snap.TopicFrequency[k] = *v
	}
	for k, v := range l.intents {
		snap.IntentTypeFrequency[k] = *v
	}
	return snap
}

// Restore 用快照整体替换会话状态，用于重启预热。
// 交互条数超过上限时只保留最近的部分；空快照等同于 Clear。
func (s *Store) Restore(snap model.LogSnapshot) {
	if len(snap.Interactions) == 0 {
		s.Clear(snap.Key)
		return
	}

	l := newConversationLog(s.cap)
	l.interactions = append(l.interactions, tail(snap.Interactions, min(len(snap.Interactions), s.cap))...)
	l.total = max(snap.TotalInteractions, len(l.interactions))
	for k, v := range snap.TopicFrequency {
		st := v
		l.topics[k] = &st
	}
	for k, v := range snap.IntentTypeFrequency {
		if !k.Valid() {
			continue
		}
		st := v
		l.intents[k] = &st
	}
	l.lastTime = snap.LastInteractionTime
	if last := l.interactions[len(l.interactions)-1].Timestamp; last.After(l.lastTime) {
		l.lastTime = last
	}
	l.risk = snap.RiskToleranceEstimate
	if l.risk == "" {
		l.risk = model.RiskUnknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.logs[snap.Key]; ok {
		old.mu.Lock()
		old.dead = true
		old.mu.Unlock()
	}
	s.logs[snap.Key] = l
}
