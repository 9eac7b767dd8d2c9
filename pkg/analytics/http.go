package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nft-sage-go/internal/config"
	"nft-sage-go/internal/model"
)

// HTTPProvider 调用外部 NFT 数据 API。
type HTTPProvider struct {
	baseURL string
	apiKey  string
	chain   string
	client  *http.Client
}

// NewHTTPProvider 创建 HTTP 数据源，每次请求受 cfg.Timeout 约束。
func NewHTTPProvider(cfg config.AnalyticsConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		chain:   cfg.Chain,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) WalletReport(ctx context.Context, address, chain string) (*model.WalletReport, error) {
	if chain == "" {
		chain = p.chain
	}
	var report model.WalletReport
	q := url.Values{"chain": {chain}}
	if err := p.get(ctx, "/wallets/"+url.PathEscape(address), q, &report); err != nil {
		return nil, err
	}
	if report.Address == "" {
		report.Address = address
	}
	if report.Chain == "" {
		report.Chain = chain
	}
	report.Source, report.Authoritative = SourceHTTP, true
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	return &report, nil
}

func (p *HTTPProvider) CollectionReport(ctx context.Context, slug string) (*model.CollectionReport, error) {
	var report model.CollectionReport
	if err := p.get(ctx, "/collections/"+url.PathEscape(slug), nil, &report); err != nil {
		return nil, err
	}
	if report.Slug == "" {
		report.Slug = slug
	}
	report.Source, report.Authoritative = SourceHTTP, true
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	return &report, nil
}

func (p *HTTPProvider) MarketOverview(ctx context.Context) (*model.MarketOverview, error) {
	var overview model.MarketOverview
	if err := p.get(ctx, "/market/overview", nil, &overview); err != nil {
		return nil, err
	}
	overview.Source, overview.Authoritative = SourceHTTP, true
	if overview.GeneratedAt.IsZero() {
		overview.GeneratedAt = time.Now()
	}
	return &overview, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create analytics request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call analytics api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("analytics api returned non-200 status: %s, body: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode analytics response: %w", err)
	}
	return nil
}
