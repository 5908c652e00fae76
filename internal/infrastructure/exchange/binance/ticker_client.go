package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
	"tradepilot/internal/infrastructure/exchange"
)

// TickerClient reads the public 24h ticker endpoint for the watched
// coins. No signing: market data is unauthenticated.
type TickerClient struct {
	baseURL    string
	httpClient *http.Client
	pairs      exchange.PairConverter
	coins      []string
}

func NewTickerClient(baseURL string, coins []string, pairs exchange.PairConverter, timeout time.Duration) *TickerClient {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TickerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		pairs:      pairs,
		coins:      coins,
	}
}

type ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

func (c *TickerClient) GetSnapshot(ctx context.Context) (map[string]model.MarketSnapshot, error) {
	pairs := make([]string, 0, len(c.coins))
	for _, coin := range c.coins {
		if p := c.pairs.Coin2Pair(coin); p != "" {
			pairs = append(pairs, p)
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no symbols to fetch")
	}

	symbolsParam, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("build ticker request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbols=%s", c.baseURL, url.QueryEscape(string(symbolsParam)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build ticker request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &model.ExchangeError{Message: fmt.Sprintf("ticker http %d: %s", resp.StatusCode, string(body))}
	}

	var tickers []ticker24h
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, fmt.Errorf("parse tickers: %w", err)
	}

	now := time.Now()
	snapshot := make(map[string]model.MarketSnapshot, len(tickers))
	for _, t := range tickers {
		coin := c.pairs.Pair2Coin(t.Symbol)
		price, _ := strconv.ParseFloat(t.LastPrice, 64)
		change, _ := strconv.ParseFloat(t.PriceChangePercent, 64)
		volume, _ := strconv.ParseFloat(t.Volume, 64)
		high, _ := strconv.ParseFloat(t.HighPrice, 64)
		low, _ := strconv.ParseFloat(t.LowPrice, 64)
		snapshot[coin] = model.MarketSnapshot{
			Symbol:    coin,
			Price:     price,
			Change24h: change,
			Volume24h: volume * price, // quote it in the quote currency
			High24h:   high,
			Low24h:    low,
			UpdatedAt: now,
		}
	}
	return snapshot, nil
}

var _ port.MarketData = (*TickerClient)(nil)
