package memory

import "time"

const (
	// DefaultCap 是每个会话保留的交互条数上限。
	DefaultCap = 20
	// DefaultWindow 是 GetContext / GetHistory 的默认窗口。
	DefaultWindow = 10

	maxTopTopics  = 5
	maxTopIntents = 3
)

// Options 配置会话记忆的上限与词表。
type Options struct {
	Cap                  int
	Topics               map[string][]string
	ConservativeKeywords []string
	AggressiveKeywords   []string
	// Now 仅供测试注入时钟，为空时使用 time.Now。
	Now func() time.Time
}

// DefaultOptions 返回内置的 NFT 领域词表。
func DefaultOptions() Options {
	return Options{
		Cap:                  DefaultCap,
		Topics:               DefaultTopics(),
		ConservativeKeywords: DefaultConservativeKeywords(),
		AggressiveKeywords:   DefaultAggressiveKeywords(),
	}
}

// DefaultTopics 包含头部合集名、领域名词与公链名。
func DefaultTopics() map[string][]string {
	return map[string][]string{
		// 合集
		"bayc":           {"bayc", "bored ape*"},
		"mayc":           {"mayc", "mutant ape*"},
		"cryptopunks":    {"cryptopunk*", "punks"},
		"azuki":          {"azuki*"},
		"doodles":        {"doodle*"},
		"pudgy penguins": {"pudgy*", "penguin*"},
		"moonbirds":      {"moonbird*"},
		"clonex":         {"clonex", "clone x"},
		"milady":         {"milady", "miladys"},
		"art blocks":     {"art blocks", "artblocks"},
		// 领域名词
		"wallet":      {"wallet*", "address*", "0x*"},
		"collection":  {"collection*", "project*"},
		"floor price": {"floor*"},
		"volume":      {"volume*"},
		"rarity":      {"rarity", "rare", "rarest", "trait*"},
		"royalties":   {"royalty", "royalties"},
		"mint":        {"mint*"},
		"whales":      {"whale*"},
		"portfolio":   {"portfolio*", "holdings"},
		"risk":        {"risk*", "safe", "rug", "rugged", "rugpull", "scam*"},
		"market":      {"market*", "trend*", "sentiment"},
		"liquidity":   {"liquidity", "liquid", "illiquid"},
		// 公链
		"ethereum": {"ethereum", "eth"},
		"polygon":  {"polygon", "matic"},
		"solana":   {"solana", "sol"},
		"arbitrum": {"arbitrum"},
		"base":     {"base chain", "on base"},
		"bitcoin":  {"bitcoin", "ordinals", "btc"},
	}
}

// DefaultConservativeKeywords 返回保守型信号词。
// 词表语法与话题词表相同：整词匹配，以 "*" 结尾表示前缀匹配。
func DefaultConservativeKeywords() []string {
	return []string{
		"safe", "safer", "safest", "safety", "stable", "low risk", "conservative", "blue chip*", "blue-chip*",
		"secure", "long term", "long-term", "hold", "hodl", "protect*", "preserv*", "careful*", "established",
	}
}

// DefaultAggressiveKeywords 返回激进型信号词。
func DefaultAggressiveKeywords() []string {
	return []string{
		"moon", "mooning", "flip*", "100x", "10x", "degen*", "high risk", "aggressive",
		"quick profit*", "pump*", "leverag*", "ape in", "aping", "yolo", "all in", "gambl*", "fast money",
	}
}

func (o Options) withDefaults() Options {
	if o.Cap <= 0 {
		o.Cap = DefaultCap
	}
	if o.Topics == nil {
		o.Topics = DefaultTopics()
	}
	if o.ConservativeKeywords == nil {
		o.ConservativeKeywords = DefaultConservativeKeywords()
	}
	if o.AggressiveKeywords == nil {
		o.AggressiveKeywords = DefaultAggressiveKeywords()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
