// Package channel 将 Telegram 与 Discord 机器人接入聊天与分析服务。
package channel

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"nft-sage-go/internal/model"
	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/log"
)

const helpText = `NFT Sage 可以回答 NFT 相关的问题，并记住你的偏好。

命令:
  {p}wallet <地址或ENS> [链]  分析钱包持仓
  {p}collection <slug>        分析合集
  {p}market                   查看市场概况
  {p}forget                   清除我的会话记忆
  {p}help                     显示本帮助

也可以直接提问，例如 "azuki 的地板价最近怎么样？"`

const (
	replyUnavailable = "抱歉，服务暂时不可用，请稍后重试。"
	replyNotFound    = "没有找到对应的钱包或合集。"
)

// Command 是从消息中解析出的机器人命令。
type Command struct {
	Name string
	Args []string
}

// ParseCommand 解析以 prefix 开头的命令，支持 Telegram 的 "/cmd@botname" 形式。
// 非命令消息返回 false。
func ParseCommand(text, prefix string) (Command, bool) {
	text = strings.TrimSpace(text)
	rest, found := strings.CutPrefix(text, prefix)
	if prefix == "" || !found || rest == "" {
		return Command{}, false
	}
	fields := strings.Fields(rest)
	name, _, _ := strings.Cut(fields[0], "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

// Router 把一条入站消息路由到命令或自由问答，返回要回复的文本。
type Router struct {
	platform      model.Platform
	prefix        string
	chat          service.ChatService
	analysis      service.AnalysisService
	conversations service.ConversationService
}

// NewRouter 创建一个绑定到指定平台的 Router。
func NewRouter(platform model.Platform, prefix string, chat service.ChatService,
	analysis service.AnalysisService, conversations service.ConversationService) *Router {
	return &Router{
		platform:      platform,
		prefix:        prefix,
		chat:          chat,
		analysis:      analysis,
		conversations: conversations,
	}
}

// Handle 处理一条消息。返回空字符串表示无需回复。
func (r *Router) Handle(ctx context.Context, userID, text string) string {
	if cmd, ok := ParseCommand(text, r.prefix); ok {
		return r.command(ctx, userID, cmd)
	}

	reply, err := r.chat.Handle(ctx, service.ChatRequest{Message: text, UserID: userID, Platform: string(r.platform)})
	switch {
	case err == nil:
		return reply.Response
	case errors.Is(err, service.ErrEmptyMessage):
		return ""
	default:
		log.Errorw("机器人问答失败", "platform", r.platform, "userId", userID, "error", err)
		return replyUnavailable
	}
}

func (r *Router) command(ctx context.Context, userID string, cmd Command) string {
	req := service.AnalysisRequest{UserID: userID, Platform: string(r.platform)}

	switch cmd.Name {
	case "start", "help":
		return strings.ReplaceAll(helpText, "{p}", r.prefix)
	case "wallet":
		if len(cmd.Args) == 0 {
			return "用法: " + r.prefix + "wallet <地址或ENS> [链]"
		}
		req.Target = cmd.Args[0]
		if len(cmd.Args) > 1 {
			req.Chain = strings.ToLower(cmd.Args[1])
		}
		res, err := r.analysis.Wallet(ctx, req)
		if err != nil {
			return r.analysisError(cmd, err)
		}
		return res.Narrative
	case "collection":
		if len(cmd.Args) == 0 {
			return "用法: " + r.prefix + "collection <slug>"
		}
		req.Target = cmd.Args[0]
		res, err := r.analysis.Collection(ctx, req)
		if err != nil {
			return r.analysisError(cmd, err)
		}
		return res.Narrative
	case "market":
		res, err := r.analysis.Market(ctx, req)
		if err != nil {
			return r.analysisError(cmd, err)
		}
		return res.Narrative
	case "forget":
		if r.conversations.Clear(ctx, model.NewConversationKey(userID, string(r.platform))) {
			return "已清除你的会话记忆。"
		}
		return "目前没有需要清除的会话记忆。"
	default:
		return "未知命令 " + r.prefix + cmd.Name + "，发送 " + r.prefix + "help 查看可用命令。"
	}
}

func (r *Router) analysisError(cmd Command, err error) string {
	switch {
	case errors.Is(err, analytics.ErrNotFound):
		return replyNotFound
	case errors.Is(err, service.ErrMissingTarget):
		return "用法: " + r.prefix + cmd.Name + " <目标>"
	default:
		log.Errorw("机器人分析命令失败", "platform", r.platform, "command", cmd.Name, "error", err)
		return replyUnavailable
	}
}

// splitMessage 按平台的单条消息长度上限切分文本，优先在换行处切分，不会截断 UTF-8 字符。
func splitMessage(text string, maxLen int) []string {
	var parts []string
	for len(text) > maxLen {
		cut := strings.LastIndex(text[:maxLen], "\n")
		if cut <= 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
