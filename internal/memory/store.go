// Package memory 实现按 (用户, 平台) 划分的会话记忆：
// 有上限的交互日志，加上不受上限影响的累计统计。
package memory

import (
	"sort"
	"sync"
	"time"

	"nft-sage-go/internal/model"

	"github.com/google/uuid"
)

// Key 标识一段会话。
type Key = model.ConversationKey

// conversationLog 由 Store 独占，所有字段受 mu 保护。
// dead 表示该日志已被 Clear 或 Sweep 从 Store 中摘除。
type conversationLog struct {
	mu           sync.Mutex
	dead         bool
	interactions []model.Interaction
	total        int
	topics       map[string]*model.CountStat
	intents      map[model.IntentType]*model.CountStat
	lastTime     time.Time
	risk         model.RiskTolerance
}

func newConversationLog(capacity int) *conversationLog {
	return &conversationLog{
		interactions: make([]model.Interaction, 0, capacity),
		topics:       make(map[string]*model.CountStat),
		intents:      make(map[model.IntentType]*model.CountStat),
		risk:         model.RiskUnknown,
	}
}

// Store 是进程内的会话记忆。
// 不同会话的写入互不阻塞；同一会话的操作串行执行。
// 锁顺序固定为 Store.mu -> conversationLog.mu。
type Store struct {
	mu       sync.RWMutex
	logs     map[Key]*conversationLog
	cap      int
	analyzer *Analyzer
	now      func() time.Time
}

// New 创建一个会话记忆实例，其生命周期由调用方管理。
func New(opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		logs:     make(map[Key]*conversationLog),
		cap:      opts.Cap,
		analyzer: NewAnalyzer(opts.Topics, opts.ConservativeKeywords, opts.AggressiveKeywords),
		now:      opts.Now,
	}
}

// Cap 返回每个会话保留的交互条数上限。
func (s *Store) Cap() int { return s.cap }

// AddInteraction 以当前时间追加一次交互并更新统计。
// intent 不合法时按缺省处理。
func (s *Store) AddInteraction(key Key, userQuery, aiResponse string, intent *model.Intent) model.Interaction {
	return s.Record(key, model.Interaction{
		ID:         uuid.NewString(),
		Timestamp:  s.now(),
		UserQuery:  userQuery,
		AIResponse: aiResponse,
		Intent:     intent,
	})
}

// Record 追加一条已构造好的交互，保留其 ID。
// ID 为空时自动生成，时间戳为零值时取当前时间，早于上一条时被拉齐以保持非递减。
// 日志中已存在同 ID 的交互时不重复计数，直接返回已保存的那条。
func (s *Store) Record(key Key, it model.Interaction) model.Interaction {
	replay := it.ID != ""
	if !replay {
		it.ID = uuid.NewString()
	}
	if it.Timestamp.IsZero() {
		it.Timestamp = s.now()
	}
	if !it.Intent.Valid() {
		it.Intent = nil
	} else {
		it.Intent = cloneIntent(it.Intent)
	}

	// 纯函数部分在加锁前完成
	topics := s.analyzer.Topics(it.UserQuery)
	conservative, aggressive := s.analyzer.RiskSignals(it.UserQuery)

	for {
		l := s.getOrCreate(key)
		l.mu.Lock()
		if l.dead {
			// 与 Clear / Sweep 竞争失败，重新取一个新日志
			l.mu.Unlock()
			continue
		}
		if replay {
			if existing, ok := l.find(it.ID); ok {
				l.mu.Unlock()
				return existing
			}
		}
		stored := l.append(it, topics, conservative, aggressive, s.cap)
		l.mu.Unlock()
		return stored
	}
}

// find 从新到旧查找，重复投递通常命中最近几条。
func (l *conversationLog) find(id string) (model.Interaction, bool) {
	for i := len(l.interactions) - 1; i >= 0; i-- {
		if l.interactions[i].ID == id {
			return l.interactions[i], true
		}
	}
	return model.Interaction{}, false
}

func (l *conversationLog) append(it model.Interaction, topics []string, conservative, aggressive, capacity int) model.Interaction {
	if it.Timestamp.Before(l.lastTime) {
		it.Timestamp = l.lastTime
	}
	l.total++
	seq := l.total

	for _, t := range topics {
		bump(l.topics, t, seq)
	}
	if it.Intent != nil {
		bump(l.intents, it.Intent.Type, seq)
	}
	l.risk = NextRisk(l.risk, conservative, aggressive)
	l.lastTime = it.Timestamp

	l.interactions = append(l.interactions, it)
	if over := len(l.interactions) - capacity; over > 0 {
		// 复制到新切片，避免底层数组无限增长
		kept := make([]model.Interaction, capacity, capacity+1)
		copy(kept, l.interactions[over:])
		l.interactions = kept
	}
	return it
}

func bump[K comparable](m map[K]*model.CountStat, k K, seq int) {
	st, ok := m[k]
	if !ok {
		st = &model.CountStat{}
		m[k] = st
	}
	st.Count++
	st.LastSeen = seq
}

func (s *Store) getOrCreate(key Key) *conversationLog {
	s.mu.RLock()
	l, ok := s.logs[key]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[key]; ok {
		return l
	}
	l = newConversationLog(s.cap)
	s.logs[key] = l
	return l
}

func (s *Store) lookup(key Key) *conversationLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logs[key]
}

// GetContext 返回会话的个性化上下文，windowSize <= 0 时取默认值。
// 未知会话返回 HasHistory=false 的零值上下文。
func (s *Store) GetContext(key Key, windowSize int) model.Context {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}
	ctx := emptyContext()

	l := s.lookup(key)
	if l == nil {
		return ctx
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return ctx
	}

	ctx.HasHistory = true
	ctx.TotalInteractions = l.total
	ctx.RecentInteractions = tail(l.interactions, windowSize)
	ctx.TopTopics = rankKeys(l.topics, maxTopTopics)
	ctx.TopIntentTypes = rankKeys(l.intents, maxTopIntents)
	if len(ctx.TopIntentTypes) > 0 {
		ctx.PreferredAnalysisType = ctx.TopIntentTypes[0]
	}
	ctx.EngagementLevel = model.EngagementFor(l.total)
	ctx.RiskToleranceEstimate = l.risk
	ctx.LastInteractionTime = l.lastTime
	return ctx
}

func emptyContext() model.Context {
	return model.Context{
		RecentInteractions:    []model.Interaction{},
		TopTopics:             []string{},
		TopIntentTypes:        []model.IntentType{},
		EngagementLevel:       model.EngagementNew,
		RiskToleranceEstimate: model.RiskUnknown,
	}
}

// GetHistory 按时间顺序返回最近 limit 条交互，limit <= 0 时取默认值。
func (s *Store) GetHistory(key Key, limit int) []model.Interaction {
	if limit <= 0 {
		limit = DefaultWindow
	}
	l := s.lookup(key)
	if l == nil {
		return []model.Interaction{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return []model.Interaction{}
	}
	return tail(l.interactions, limit)
}

func tail(items []model.Interaction, n int) []model.Interaction {
	if n > len(items) {
		n = len(items)
	}
	out := make([]model.Interaction, n)
	copy(out, items[len(items)-n:])
	for i := range out {
		out[i].Intent = cloneIntent(out[i].Intent)
	}
	return out
}

// Clear 删除会话的日志与统计，返回是否确有内容被删除。
func (s *Store) Clear(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[key]
	if !ok {
		return false
	}
	l.mu.Lock()
	l.dead = true
	l.mu.Unlock()
	delete(s.logs, key)
	return true
}

// Sweep 删除所有会话中早于 maxAge 的交互，日志被清空的会话整体移除。
// 返回删除的交互条数。累计计数不会因此减少。
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	type entry struct {
		key Key
		log *conversationLog
	}
	s.mu.RLock()
	entries := make([]entry, 0, len(s.logs))
	for k, l := range s.logs {
		entries = append(entries, entry{key: k, log: l})
	}
	s.mu.RUnlock()

	removed := 0
	for _, e := range entries {
		n, empty := e.log.evictBefore(cutoff)
		removed += n
		if empty {
			s.dropIfEmpty(e.key, e.log)
		}
	}
	return removed
}

func (l *conversationLog) evictBefore(cutoff time.Time) (removed int, empty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return 0, false
	}
	kept := l.interactions[:0]
	for _, it := range l.interactions {
		if it.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	// 清掉尾部残留引用
	for i := len(kept); i < len(l.interactions); i++ {
		l.interactions[i] = model.Interaction{}
	}
	l.interactions = kept
	return removed, len(kept) == 0
}

// dropIfEmpty 在持有两级锁的情况下复核后再移除，避免误删刚被追加的日志。
func (s *Store) dropIfEmpty(key Key, l *conversationLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logs[key] != l {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead || len(l.interactions) > 0 {
		return
	}
	l.dead = true
	delete(s.logs, key)
}

// Keys 返回当前持有日志的全部会话键，按平台、用户排序。
func (s *Store) Keys() []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.logs))
	for k := range s.logs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Platform != keys[j].Platform {
			return keys[i].Platform < keys[j].Platform
		}
		return keys[i].UserID < keys[j].UserID
	})
	return keys
}

// Len 返回当前会话数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

func cloneIntent(in *model.Intent) *model.Intent {
	if in == nil {
		return nil
	}
	out := *in
	if in.Entities != nil {
		out.Entities = make(map[string]any, len(in.Entities))
		for k, v := range in.Entities {
			out.Entities[k] = v
		}
	}
	return &out
}
