package channel

import (
	"context"
	"fmt"

	"nft-sage-go/pkg/log"
)

// Channel 是一个消息渠道。
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager 管理所有已启用的渠道。
type Manager struct {
	channels []Channel
}

// NewManager 创建 Manager。
func NewManager(channels ...Channel) *Manager {
	return &Manager{channels: channels}
}

// StartAll 依次启动所有渠道。任一渠道启动失败时停止已启动的渠道。
func (m *Manager) StartAll(ctx context.Context) error {
	for i, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			for _, started := range m.channels[:i] {
				_ = started.Stop()
			}
			return fmt.Errorf("start channel %s: %w", ch.Name(), err)
		}
		log.Infof("渠道 %s 已启动", ch.Name())
	}
	return nil
}

// StopAll 停止所有渠道，记录但不返回单个渠道的错误。
func (m *Manager) StopAll() {
	for _, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			log.Errorw("停止渠道失败", "channel", ch.Name(), "error", err)
		}
	}
}

// Names 返回已启用渠道的名称。
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
