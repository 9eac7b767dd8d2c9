package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"nft-sage-go/internal/config"
	"nft-sage-go/pkg/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxLen = 4000

// TelegramBot 是 tgbotapi.BotAPI 中用到的部分，便于测试替换。
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() { w.bot.StopReceivingUpdates() }

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) { return w.bot.Send(c) }

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User { return w.bot.Self }

// BotFactory 创建 TelegramBot 实例。
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramChannel 通过长轮询接收 Telegram 消息并回复。
type TelegramChannel struct {
	token      string
	proxy      string
	router     *Router
	botFactory BotFactory
	bot        TelegramBot
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewTelegramChannel 创建 TelegramChannel，router 应以 "/" 为命令前缀。
func NewTelegramChannel(cfg config.TelegramConfig, router *Router) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, router, defaultBotFactory)
}

// NewTelegramChannelWithFactory 使用自定义的 BotFactory 创建 TelegramChannel。
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, router *Router, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &TelegramChannel{
		token:      cfg.Token,
		proxy:      cfg.Proxy,
		router:     router,
		botFactory: factory,
	}, nil
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Infof("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return nil
}

// Start 启动长轮询，消息在独立 goroutine 中处理。
func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}
	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				t.wg.Add(1)
				go func(msg *tgbotapi.Message) {
					defer t.wg.Done()
					t.handleMessage(ctx, msg)
				}(update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("[telegram] polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)
	if _, err := t.bot.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		log.Warnf("[telegram] send typing action failed: %v", err)
	}

	reply := t.router.Handle(ctx, userID, msg.Text)
	if reply == "" {
		return
	}
	if err := t.send(msg.Chat.ID, msg.MessageID, reply); err != nil {
		log.Errorw("[telegram] reply failed", "chatId", msg.Chat.ID, "error", err)
	}
}

func (t *TelegramChannel) send(chatID int64, replyTo int, text string) error {
	for i, chunk := range splitMessage(text, telegramMaxLen) {
		m := tgbotapi.NewMessage(chatID, chunk)
		if i == 0 {
			m.ReplyToMessageID = replyTo
		}
		if _, err := t.bot.Send(m); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// Stop 停止轮询并等待处理中的消息完成。
func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.wg.Wait()
	log.Info("[telegram] stopped")
	return nil
}
