package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"nft-sage-go/internal/config"
	"nft-sage-go/pkg/log"

	"github.com/bwmarrin/discordgo"
)

const discordMaxLen = 1900

// messageSender 是 discordgo.Session 中用于回复的部分。
type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// DiscordChannel 通过 Gateway 接收 Discord 消息并回复。
// 服务器频道中只响应带前缀的命令或 @ 提及，私信中响应全部消息。
type DiscordChannel struct {
	token   string
	router  *Router
	session *discordgo.Session
	ctx     context.Context
	cancel  context.CancelFunc

	// mu 保护 closed，保证 Stop 之后不再有 wg.Add
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDiscordChannel 创建 DiscordChannel，router 应以配置的前缀作为命令前缀。
func NewDiscordChannel(cfg config.DiscordConfig, router *Router) (*DiscordChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	return &DiscordChannel{token: cfg.Token, router: router}, nil
}

func (d *DiscordChannel) Name() string { return "discord" }

func (d *DiscordChannel) Start(ctx context.Context) error {
	s, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.ctx, d.cancel = context.WithCancel(ctx)
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.dispatch(s, s.State.User.ID, m)
	})
	if err := s.Open(); err != nil {
		d.cancel()
		return fmt.Errorf("open discord gateway: %w", err)
	}
	d.session = s
	log.Infof("[discord] connected as %s", s.State.User.Username)
	return nil
}

// dispatch 在 Stop 之后直接丢弃消息，否则登记到 wg 中处理。
func (d *DiscordChannel) dispatch(sender messageSender, selfID string, m *discordgo.MessageCreate) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()
	d.handle(d.ctx, sender, selfID, m)
}

// handle 处理一条消息。selfID 为机器人自己的用户 ID。
func (d *DiscordChannel) handle(ctx context.Context, sender messageSender, selfID string, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return
	}
	text, ok := d.addressed(selfID, m)
	if !ok {
		return
	}
	_ = sender.ChannelTyping(m.ChannelID)

	reply := d.router.Handle(ctx, m.Author.ID, text)
	if reply == "" {
		return
	}
	for _, chunk := range splitMessage(reply, discordMaxLen) {
		if _, err := sender.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			log.Errorw("[discord] reply failed", "channelId", m.ChannelID, "error", err)
			return
		}
	}
}

// addressed 判断消息是否发给机器人，并去掉提及部分。
func (d *DiscordChannel) addressed(selfID string, m *discordgo.MessageCreate) (string, bool) {
	text := strings.TrimSpace(m.Content)
	if m.GuildID == "" {
		return text, text != ""
	}
	if strings.HasPrefix(text, d.router.prefix) {
		return text, true
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == selfID {
			text = strings.NewReplacer("<@"+selfID+">", "", "<@!"+selfID+">", "").Replace(text)
			text = strings.TrimSpace(text)
			return text, text != ""
		}
	}
	return "", false
}

func (d *DiscordChannel) Stop() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	var err error
	if d.session != nil {
		err = d.session.Close()
	}
	d.wg.Wait()
	log.Info("[discord] stopped")
	return err
}
