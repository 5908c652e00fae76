package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tradepilot/internal/application/port"
	"tradepilot/internal/domain/model"
	"tradepilot/internal/infrastructure/exchange"
)

// OrderClient submits signed MARKET orders on the spot API. It holds
// no order state and does no deduplication: the ledger's
// single-approval transition is the only thing standing between an
// approved trade and a duplicate order, so callers must invoke this
// at most once per approved trade.
type OrderClient struct {
	client *APIClient
	pairs  exchange.PairConverter
}

func NewOrderClient(client *APIClient, pairs exchange.PairConverter) *OrderClient {
	return &OrderClient{client: client, pairs: pairs}
}

type orderResponse struct {
	OrderID     int64  `json:"orderId"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
	Fills       []struct {
		Price string `json:"price"`
		Qty   string `json:"qty"`
	} `json:"fills"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SubmitOrder signs and posts one MARKET order for the trade.
//
// The parameter string is assembled by hand in a frozen order
// (symbol, side, type, quantity, timestamp) and signed as that exact
// byte sequence; the signature is appended as the last parameter.
func (c *OrderClient) SubmitOrder(ctx context.Context, trade *model.Trade) (*port.ExecutionResult, error) {
	pair := c.pairs.Coin2Pair(trade.Symbol)

	payload := fmt.Sprintf("symbol=%s&side=%s&type=MARKET&quantity=%s&timestamp=%d",
		pair, trade.Action, formatQuantity(trade.Quantity), time.Now().UnixMilli())
	signature := c.client.credentials.Sign(payload)
	endpoint := fmt.Sprintf("%s/api/v3/order?%s&signature=%s",
		strings.TrimRight(c.client.baseURL, "/"), payload, signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.client.credentials.APIKey())

	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, &model.ExchangeError{Code: apiErr.Code, Message: apiErr.Msg}
		}
		return nil, &model.ExchangeError{Message: fmt.Sprintf("http %d: %s", resp.StatusCode, string(body))}
	}

	var result orderResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}

	executedQty, _ := strconv.ParseFloat(result.ExecutedQty, 64)
	if executedQty == 0 {
		executedQty = trade.Quantity
	}

	// price of the first reported fill; multi-fill orders are not
	// weight-averaged
	executedPrice := trade.Price
	if len(result.Fills) > 0 {
		if p, err := strconv.ParseFloat(result.Fills[0].Price, 64); err == nil && p > 0 {
			executedPrice = p
		}
	}

	log.Info().Str("symbol", pair).Str("side", string(trade.Action)).
		Float64("qty", executedQty).Float64("price", executedPrice).
		Int64("orderId", result.OrderID).Str("status", result.Status).
		Msg("order placed")

	return &port.ExecutionResult{
		ExchangeOrderID: strconv.FormatInt(result.OrderID, 10),
		ExecutedQty:     executedQty,
		ExecutedPrice:   executedPrice,
		Status:          result.Status,
	}, nil
}

// formatQuantity renders the quantity the way it was computed, without
// exponent notation or trailing zeros.
func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

var _ port.ExchangeGateway = (*OrderClient)(nil)
