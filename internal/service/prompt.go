package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/llm"
)

const demoDisclaimer = "The data block comes from a DEMO data source and is not real market data. Say so explicitly in your answer."

// turnData 是本轮为回答准备的分析数据，任一字段可为空。
type turnData struct {
	Wallet     *model.WalletReport     `json:"wallet,omitempty"`
	Collection *model.CollectionReport `json:"collection,omitempty"`
	Market     *model.MarketOverview   `json:"market,omitempty"`
}

func (d turnData) empty() bool {
	return d.Wallet == nil && d.Collection == nil && d.Market == nil
}

func (d turnData) demo() bool {
	return (d.Wallet != nil && !d.Wallet.Authoritative) ||
		(d.Collection != nil && !d.Collection.Authoritative) ||
		(d.Market != nil && !d.Market.Authoritative)
}

// buildProfile 将会话上下文压缩为一段给模型看的用户画像。
func buildProfile(c model.Context) string {
	if !c.HasHistory {
		return "New user, no previous conversation."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Returning user: %d interactions (%s engagement).", c.TotalInteractions, c.EngagementLevel)
	if len(c.TopTopics) > 0 {
		fmt.Fprintf(&sb, " Frequent topics: %s.", strings.Join(c.TopTopics, ", "))
	}
	if c.PreferredAnalysisType != "" {
		fmt.Fprintf(&sb, " Usually asks for %s.", c.PreferredAnalysisType)
	}
	if c.RiskToleranceEstimate != model.RiskUnknown {
		fmt.Fprintf(&sb, " Estimated risk tolerance: %s.", c.RiskToleranceEstimate)
	}
	return sb.String()
}

func buildSystemMessage(p config.LLMPromptConfig, profile string, data turnData) string {
	refStart := p.RefStart
	if refStart == "" {
		refStart = "<<DATA>>"
	}
	refEnd := p.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	if p.Rules != "" {
		sys.WriteString(p.Rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString("User profile: ")
	sys.WriteString(profile)
	sys.WriteString("\n\n")
	if data.demo() {
		sys.WriteString(demoDisclaimer)
		sys.WriteString("\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if data.empty() {
		noRes := p.NoResultText
		if noRes == "" {
			noRes = "(no analytics data for this turn)"
		}
		sys.WriteString(noRes)
	} else {
		b, _ := json.MarshalIndent(data, "", "  ")
		sys.Write(b)
	}
	sys.WriteString("\n")
	sys.WriteString(refEnd)
	return sys.String()
}

// composeMessages 组装 system 消息、最近的问答轮次与本轮问题。
func composeMessages(systemMsg string, recent []model.Interaction, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(recent)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemMsg})
	for _, it := range recent {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: it.UserQuery},
			llm.Message{Role: "assistant", Content: it.AIResponse},
		)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})
	return msgs
}

func buildGenerationParams(g config.LLMGenerationConfig) *llm.GenerationParams {
	var gp llm.GenerationParams
	if g.Temperature != 0 {
		t := g.Temperature
		gp.Temperature = &t
	}
	if g.TopP != 0 {
		p := g.TopP
		gp.TopP = &p
	}
	if g.MaxTokens != 0 {
		m := g.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

// FormatWalletReport 生成钱包报告的纯文本摘要，用于模型不可用时和机器人回复。
func FormatWalletReport(r *model.WalletReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Wallet %s on %s\n", r.Address, r.Chain)
	fmt.Fprintf(&sb, "NFTs: %d across %d collections\n", r.TotalNFTs, r.CollectionsHeld)
	fmt.Fprintf(&sb, "Estimated value: %.3f ETH, realized PnL: %.3f ETH\n", r.EstimatedValue, r.RealizedPnL)
	for _, h := range r.TopHoldings {
		fmt.Fprintf(&sb, "  - %s x%d (floor %.3f ETH)\n", h.Collection, h.Count, h.FloorPrice)
	}
	fmt.Fprintf(&sb, "Risk score: %.1f/10", r.RiskScore)
	sb.WriteString(sourceNote(r.Source, r.Authoritative))
	return sb.String()
}

// FormatCollectionReport 生成合集报告的纯文本摘要。
func FormatCollectionReport(r *model.CollectionReport) string {
	var sb strings.Builder
	name := r.Name
	if name == "" {
		name = r.Slug
	}
	fmt.Fprintf(&sb, "%s (%s)\n", name, r.Chain)
	fmt.Fprintf(&sb, "Floor: %.3f ETH (%+.2f%% 7d)\n", r.FloorPrice, r.FloorChange7d)
	fmt.Fprintf(&sb, "24h volume: %.2f ETH over %d sales\n", r.Volume24h, r.Sales24h)
	fmt.Fprintf(&sb, "Holders: %d / supply %d", r.Holders, r.Supply)
	sb.WriteString(sourceNote(r.Source, r.Authoritative))
	return sb.String()
}

// FormatMarketOverview 生成市场概况的纯文本摘要。
func FormatMarketOverview(m *model.MarketOverview) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market sentiment: %s\n", m.Sentiment)
	fmt.Fprintf(&sb, "24h volume: %.2f ETH over %d sales\n", m.TotalVolume24h, m.TotalSales24h)
	if len(m.TrendingSlugs) > 0 {
		fmt.Fprintf(&sb, "Trending: %s", strings.Join(m.TrendingSlugs, ", "))
	}
	sb.WriteString(sourceNote(m.Source, m.Authoritative))
	return sb.String()
}

func sourceNote(source string, authoritative bool) string {
	if authoritative {
		return ""
	}
	if source == analytics.SourceDemo {
		return "\n(demo data, not real market figures)"
	}
	return "\n(unverified data)"
}
