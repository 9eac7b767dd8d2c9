package analytics

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"nft-sage-go/internal/model"
)

var demoCollections = []string{
	"boredapeyachtclub", "cryptopunks", "azuki", "pudgypenguins", "doodles-official",
	"mutant-ape-yacht-club", "proof-moonbirds", "clonex", "milady", "art-blocks",
}

// DemoProvider 生成确定性的演示数据：相同的种子与输入总是得到相同的报告。
// 所有结果都标记为 source=demo 且 Authoritative=false，调用方必须向用户说明。
type DemoProvider struct {
	seed  int64
	chain string
	now   func() time.Time
}

// NewDemoProvider 创建演示数据源。
func NewDemoProvider(seed int64, chain string) *DemoProvider {
	if chain == "" {
		chain = "ethereum"
	}
	return &DemoProvider{seed: seed, chain: chain, now: time.Now}
}

func (p *DemoProvider) rng(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, s := range parts {
		_, _ = h.Write([]byte(strings.ToLower(s)))
		_, _ = h.Write([]byte{0})
	}
	return rand.New(rand.NewSource(p.seed ^ int64(h.Sum64())))
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}

func (p *DemoProvider) WalletReport(_ context.Context, address, chain string) (*model.WalletReport, error) {
	if chain == "" {
		chain = p.chain
	}
	r := p.rng("wallet", address, chain)

	picked := r.Perm(len(demoCollections))[:1+r.Intn(5)]
	holdings := make([]model.HoldingSummary, 0, len(picked))
	total, value := 0, 0.0
	for _, i := range picked {
		h := model.HoldingSummary{
			Collection: demoCollections[i],
			Count:      1 + r.Intn(8),
			FloorPrice: round(0.2+r.Float64()*30, 3),
		}
		total += h.Count
		value += float64(h.Count) * h.FloorPrice
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return float64(holdings[i].Count)*holdings[i].FloorPrice > float64(holdings[j].Count)*holdings[j].FloorPrice
	})

	return &model.WalletReport{
		Address:         address,
		Chain:           chain,
		TotalNFTs:       total,
		CollectionsHeld: len(holdings),
		EstimatedValue:  round(value, 3),
		RealizedPnL:     round((r.Float64()-0.4)*value, 3),
		TopHoldings:     holdings,
		RiskScore:       round(r.Float64()*10, 1),
		Source:          SourceDemo,
		Authoritative:   false,
		GeneratedAt:     p.now(),
	}, nil
}

func (p *DemoProvider) CollectionReport(_ context.Context, slug string) (*model.CollectionReport, error) {
	r := p.rng("collection", slug)
	supply := 1000 + r.Intn(9000)
	return &model.CollectionReport{
		Slug:          slug,
		Name:          slug,
		Chain:         p.chain,
		FloorPrice:    round(0.1+r.Float64()*40, 3),
		Volume24h:     round(r.Float64()*500, 2),
		Sales24h:      r.Intn(200),
		Holders:       supply/3 + r.Intn(supply/2),
		Supply:        supply,
		FloorChange7d: round((r.Float64()-0.5)*40, 2),
		Source:        SourceDemo,
		Authoritative: false,
		GeneratedAt:   p.now(),
	}, nil
}

func (p *DemoProvider) MarketOverview(_ context.Context) (*model.MarketOverview, error) {
	// 以天为粒度变化
	r := p.rng("market", p.now().UTC().Format("2006-01-02"))

	sentiments := []string{"bearish", "neutral", "bullish"}
	trending := make([]string, 0, 3)
	for _, i := range r.Perm(len(demoCollections))[:3] {
		trending = append(trending, demoCollections[i])
	}

	eth := 0.5 + r.Float64()*0.3
	sol := (1 - eth) * r.Float64()
	return &model.MarketOverview{
		TotalVolume24h: round(5000+r.Float64()*20000, 2),
		TotalSales24h:  2000 + r.Intn(20000),
		Sentiment:      sentiments[r.Intn(len(sentiments))],
		TrendingSlugs:  trending,
		ChainVolumeMix: map[string]float64{
			"ethereum": round(eth, 3),
			"solana":   round(sol, 3),
			"polygon":  round(1-eth-sol, 3),
		},
		Source:        SourceDemo,
		Authoritative: false,
		GeneratedAt:   p.now(),
	}, nil
}
