// Package tasks defines the structure for events that are sent to Kafka.
package tasks

import "nft-sage-go/internal/model"

// InteractionEvent is published after every successful exchange.
// Origin identifies the publishing instance so it can skip its own events when replaying.
type InteractionEvent struct {
	Origin      string                `json:"origin"`
	Key         model.ConversationKey `json:"key"`
	Interaction model.Interaction     `json:"interaction"`
}
