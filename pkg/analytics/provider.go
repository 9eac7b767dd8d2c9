// Package analytics 提供 NFT 钱包、合集与市场数据的查询。
package analytics

import (
	"context"
	"errors"
	"fmt"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
)

// ErrNotFound 表示数据源中不存在所查询的钱包或合集。
var ErrNotFound = errors.New("analytics: not found")

const (
	SourceHTTP = "http"
	SourceDemo = "demo"
)

// Provider 定义了 NFT 数据源接口。
type Provider interface {
	WalletReport(ctx context.Context, address, chain string) (*model.WalletReport, error)
	CollectionReport(ctx context.Context, slug string) (*model.CollectionReport, error)
	MarketOverview(ctx context.Context) (*model.MarketOverview, error)
}

// New 根据 analytics.provider 创建数据源。
func New(cfg config.AnalyticsConfig) (Provider, error) {
	switch cfg.Provider {
	case "http":
		return NewHTTPProvider(cfg), nil
	case "", "demo":
		return NewDemoProvider(cfg.Seed, cfg.Chain), nil
	default:
		return nil, fmt.Errorf("unknown analytics provider %q", cfg.Provider)
	}
}
