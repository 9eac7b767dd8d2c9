package intent

import (
	"context"
	"math"
	"regexp"
	"strings"

	"nft-sage-go/internal/model"
)

var (
	walletPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	ensPattern    = regexp.MustCompile(`\b[a-z0-9][a-z0-9-]*\.eth\b`)
	chainPattern  = regexp.MustCompile(`\b(ethereum|polygon|solana|arbitrum|base|bitcoin)\b`)
)

// knownCollections 将常见叫法映射到合集 slug。
var knownCollections = []struct {
	alias string
	slug  string
}{
	{"bored ape", "boredapeyachtclub"},
	{"bayc", "boredapeyachtclub"},
	{"mutant ape", "mutant-ape-yacht-club"},
	{"mayc", "mutant-ape-yacht-club"},
	{"cryptopunk", "cryptopunks"},
	{"azuki", "azuki"},
	{"doodles", "doodles-official"},
	{"pudgy", "pudgypenguins"},
	{"moonbird", "proof-moonbirds"},
	{"clonex", "clonex"},
	{"milady", "milady"},
	{"art blocks", "art-blocks"},
}

// KeywordClassifier 基于关键词与正则的本地分类器。
type KeywordClassifier struct {
	keywords map[model.IntentType][]string
	// 得分相同时的优先顺序
	priority []model.IntentType
}

// NewKeywordClassifier 创建带默认词表的分类器。
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		keywords: map[model.IntentType][]string{
			model.IntentWalletAnalysis: {
				"wallet", "address", "portfolio", "holdings", "my nfts", "my collection", "pnl", "profit and loss",
			},
			model.IntentCollectionAnalysis: {
				"collection", "floor", "rarity", "holders", "supply", "project", "traits",
			},
			model.IntentMarketInsights: {
				"market", "trend", "trending", "sentiment", "volume", "overall", "top collections", "this week",
			},
			model.IntentRiskAssessment: {
				"risk", "risky", "safe", "scam", "rug", "volatile", "volatility", "wash trading",
			},
		},
		priority: []model.IntentType{
			model.IntentWalletAnalysis,
			model.IntentRiskAssessment,
			model.IntentCollectionAnalysis,
			model.IntentMarketInsights,
		},
	}
}

// Classify 总是成功；没有任何命中时返回 general_question。
func (c *KeywordClassifier) Classify(_ context.Context, text string) (*model.Intent, error) {
	return c.classify(text), nil
}

func (c *KeywordClassifier) classify(text string) *model.Intent {
	lower := strings.ToLower(text)
	entities := ExtractEntities(text)

	scores := make(map[model.IntentType]int, len(c.keywords))
	for typ, words := range c.keywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				scores[typ]++
			}
		}
	}
	if _, ok := entities[model.EntityWalletAddress]; ok {
		scores[model.IntentWalletAnalysis] += 2
	}
	if _, ok := entities[model.EntityENSName]; ok {
		scores[model.IntentWalletAnalysis] += 2
	}
	if _, ok := entities[model.EntityCollection]; ok {
		scores[model.IntentCollectionAnalysis]++
	}

	best, bestScore := model.IntentGeneralQuestion, 0
	for _, typ := range c.priority {
		if scores[typ] > bestScore {
			best, bestScore = typ, scores[typ]
		}
	}

	confidence := 0.5
	if bestScore > 0 {
		confidence = math.Min(0.95, 0.6+0.1*float64(bestScore))
	}
	return &model.Intent{Type: best, Confidence: confidence, Entities: entities}
}

// ExtractEntities 抽取钱包地址、ENS 名称、合集与公链。
func ExtractEntities(text string) map[string]any {
	lower := strings.ToLower(text)
	entities := make(map[string]any)

	if addr := walletPattern.FindString(text); addr != "" {
		entities[model.EntityWalletAddress] = strings.ToLower(addr)
	}
	if ens := ensPattern.FindString(lower); ens != "" {
		entities[model.EntityENSName] = ens
	}
	for _, c := range knownCollections {
		if strings.Contains(lower, c.alias) {
			entities[model.EntityCollection] = c.slug
			break
		}
	}
	if chain := chainPattern.FindString(lower); chain != "" {
		entities[model.EntityChain] = chain
	}
	return entities
}
