// Package model 包含了应用的数据模型定义。
package model

import "time"

// Platform 标识消息来源的前端渠道。
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
)

// ConversationKey 唯一标识一段会话：同一用户在不同平台上的会话互相独立。
type ConversationKey struct {
	UserID   string   `json:"userId"`
	Platform Platform `json:"platform"`
}

// NewConversationKey 根据 userID 与平台名构造会话键。
func NewConversationKey(userID, platform string) ConversationKey {
	return ConversationKey{UserID: userID, Platform: Platform(platform)}
}

// String 返回 "platform:userID" 形式，用作 Redis / ES / Kafka 中的键。
func (k ConversationKey) String() string {
	return string(k.Platform) + ":" + k.UserID
}

// Interaction 代表一次完整的问答轮次。
type Interaction struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	UserQuery  string    `json:"userQuery"`
	AIResponse string    `json:"aiResponse"`
	Intent     *Intent   `json:"intent,omitempty"`
}

// RiskTolerance 是根据用户提问关键词推断出的风险偏好。
type RiskTolerance string

const (
	RiskUnknown      RiskTolerance = "unknown"
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// EngagementLevel 按累计交互次数划分的活跃度。
type EngagementLevel string

const (
	EngagementNew    EngagementLevel = "new"
	EngagementCasual EngagementLevel = "casual"
	EngagementActive EngagementLevel = "active"
	EngagementPower  EngagementLevel = "power"
)

// EngagementFor 根据累计交互次数返回活跃度等级。
func EngagementFor(total int) EngagementLevel {
	switch {
	case total >= 30:
		return EngagementPower
	case total >= 10:
		return EngagementActive
	case total >= 3:
		return EngagementCasual
	default:
		return EngagementNew
	}
}

// Context 是响应生成器读取的个性化上下文。
type Context struct {
	HasHistory            bool            `json:"hasHistory"`
	TotalInteractions     int             `json:"totalInteractions"`
	RecentInteractions    []Interaction   `json:"recentInteractions"`
	TopTopics             []string        `json:"topTopics"`
	TopIntentTypes        []IntentType    `json:"topIntentTypes"`
	PreferredAnalysisType IntentType      `json:"preferredAnalysisType,omitempty"`
	EngagementLevel       EngagementLevel `json:"engagementLevel"`
	RiskToleranceEstimate RiskTolerance   `json:"riskToleranceEstimate"`
	LastInteractionTime   time.Time       `json:"lastInteractionTime"`
}

// CountStat 记录某个话题或意图的出现次数与最近一次出现的序号。
type CountStat struct {
	Count    int `json:"count"`
	LastSeen int `json:"lastSeen"`
}

// LogSnapshot 是单个会话日志的完整可序列化形态，用于 Redis 归档、Kafka 复制与 MinIO 导出。
// Interactions 受上限约束，TotalInteractions 不受约束。
type LogSnapshot struct {
	Key                   ConversationKey          `json:"key"`
	Interactions          []Interaction            `json:"interactions"`
	TotalInteractions     int                      `json:"totalInteractions"`
	TopicFrequency        map[string]CountStat     `json:"topicFrequency"`
	IntentTypeFrequency   map[IntentType]CountStat `json:"intentTypeFrequency"`
	LastInteractionTime   time.Time                `json:"lastInteractionTime"`
	RiskToleranceEstimate RiskTolerance            `json:"riskToleranceEstimate"`
}
