package model

import "time"

// InteractionDocument 是写入 Elasticsearch 的一次问答记录。
type InteractionDocument struct {
	InteractionID    string    `json:"interaction_id"`
	ConversationKey  string    `json:"conversation_key"`
	UserID           string    `json:"user_id"`
	Platform         string    `json:"platform"`
	UserQuery        string    `json:"user_query"`
	AIResponse       string    `json:"ai_response"`
	IntentType       string    `json:"intent_type,omitempty"`
	IntentConfidence float64   `json:"intent_confidence,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewInteractionDocument 将会话中的一次交互转换为索引文档。
func NewInteractionDocument(key ConversationKey, it Interaction) InteractionDocument {
	doc := InteractionDocument{
		InteractionID:   it.ID,
		ConversationKey: key.String(),
		UserID:          key.UserID,
		Platform:        string(key.Platform),
		UserQuery:       it.UserQuery,
		AIResponse:      it.AIResponse,
		Timestamp:       it.Timestamp,
	}
	if it.Intent != nil {
		doc.IntentType = string(it.Intent.Type)
		doc.IntentConfidence = it.Intent.Confidence
	}
	return doc
}

// SearchHit 是 Elasticsearch 检索结果中的一条。
type SearchHit struct {
	InteractionDocument
	Score float64 `json:"score"`
}
