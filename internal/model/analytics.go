package model

import "time"

// WalletReport 是钱包分析结果。
type WalletReport struct {
	Address         string           `json:"address"`
	Chain           string           `json:"chain"`
	TotalNFTs       int              `json:"totalNfts"`
	CollectionsHeld int              `json:"collectionsHeld"`
	EstimatedValue  float64          `json:"estimatedValueEth"`
	RealizedPnL     float64          `json:"realizedPnlEth"`
	TopHoldings     []HoldingSummary `json:"topHoldings"`
	RiskScore       float64          `json:"riskScore"`
	Source          string           `json:"source"`
	Authoritative   bool             `json:"authoritative"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// HoldingSummary 是钱包中某个合集的持仓概况。
type HoldingSummary struct {
	Collection string  `json:"collection"`
	Count      int     `json:"count"`
	FloorPrice float64 `json:"floorPriceEth"`
}

// CollectionReport 是 NFT 合集分析结果。
type CollectionReport struct {
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	Chain         string    `json:"chain"`
	FloorPrice    float64   `json:"floorPriceEth"`
	Volume24h     float64   `json:"volume24hEth"`
	Sales24h      int       `json:"sales24h"`
	Holders       int       `json:"holders"`
	Supply        int       `json:"supply"`
	FloorChange7d float64   `json:"floorChange7dPct"`
	Source        string    `json:"source"`
	Authoritative bool      `json:"authoritative"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// MarketOverview 是整体市场概况。
type MarketOverview struct {
	TotalVolume24h float64            `json:"totalVolume24hEth"`
	TotalSales24h  int                `json:"totalSales24h"`
	Sentiment      string             `json:"sentiment"`
	TrendingSlugs  []string           `json:"trending"`
	ChainVolumeMix map[string]float64 `json:"chainVolumeMix"`
	Source         string             `json:"source"`
	Authoritative  bool               `json:"authoritative"`
	GeneratedAt    time.Time          `json:"generatedAt"`
}
