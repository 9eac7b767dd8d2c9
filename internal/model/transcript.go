package model

import "time"

// Transcript 是 MySQL 中的问答审计记录，不受内存会话上限与清理影响。
type Transcript struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	InteractionID    string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"interactionId"`
	UserID           string    `gorm:"type:varchar(128);index:idx_user_platform;not null" json:"userId"`
	Platform         string    `gorm:"type:varchar(32);index:idx_user_platform;not null" json:"platform"`
	Question         string    `gorm:"type:text;not null" json:"question"`
	Answer           string    `gorm:"type:text;not null" json:"answer"`
	IntentType       string    `gorm:"type:varchar(32)" json:"intentType"`
	IntentConfidence float64   `json:"intentConfidence"`
	CreatedAt        time.Time `gorm:"index;not null" json:"createdAt"`
}

func (Transcript) TableName() string {
	return "transcripts"
}

// TranscriptFromInteraction 将一次交互转换为审计记录。
func TranscriptFromInteraction(key ConversationKey, it Interaction) Transcript {
	t := Transcript{
		InteractionID: it.ID,
		UserID:        key.UserID,
		Platform:      string(key.Platform),
		Question:      it.UserQuery,
		Answer:        it.AIResponse,
		CreatedAt:     it.Timestamp,
	}
	if it.Intent != nil {
		t.IntentType = string(it.Intent.Type)
		t.IntentConfidence = it.Intent.Confidence
	}
	return t
}

// TranscriptDTO 是管理端返回的记录格式，时间以本地格式输出。
type TranscriptDTO struct {
	InteractionID string    `json:"interactionId"`
	UserID        string    `json:"userId"`
	Platform      string    `json:"platform"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	IntentType    string    `json:"intentType,omitempty"`
	CreatedAt     LocalTime `json:"createdAt"`
}

// ToDTO 转换为管理端格式。
func (t Transcript) ToDTO() TranscriptDTO {
	return TranscriptDTO{
		InteractionID: t.InteractionID,
		UserID:        t.UserID,
		Platform:      t.Platform,
		Question:      t.Question,
		Answer:        t.Answer,
		IntentType:    t.IntentType,
		CreatedAt:     LocalTime(t.CreatedAt),
	}
}
