package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"tradepilot/internal/domain/model"
	"tradepilot/internal/infrastructure/exchange"
)

var paramOrderRe = regexp.MustCompile(`^symbol=[A-Z]+&side=(BUY|SELL)&type=MARKET&quantity=[0-9.]+&timestamp=\d+$`)

func approvedTrade(action model.TradeAction) *model.Trade {
	return &model.Trade{
		ID:       "t-1",
		Symbol:   "BTC",
		Action:   action,
		Quantity: 0.016667,
		Price:    60000,
		Status:   model.StatusApproved,
	}
}

func newOrderClient(baseURL string) *OrderClient {
	api := NewAPIClient("test-key", "test-secret", baseURL, 5*time.Second)
	return NewOrderClient(api, exchange.NewQuotePairConverter("USDT"))
}

func TestOrderClientSubmitsCanonicalRequest(t *testing.T) {
	creds := NewCredentials("test-key", "test-secret")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v3/order" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-MBX-APIKEY"); got != "test-key" {
			t.Errorf("missing or wrong api key header: %q", got)
		}

		// raw query, not parsed: parameter order is part of the contract
		raw := r.URL.RawQuery
		i := strings.LastIndex(raw, "&signature=")
		if i < 0 {
			t.Fatalf("signature not last parameter: %s", raw)
		}
		payload, sig := raw[:i], raw[i+len("&signature="):]

		if !paramOrderRe.MatchString(payload) {
			t.Errorf("parameter order not canonical: %s", payload)
		}
		if !strings.HasPrefix(payload, "symbol=BTCUSDT&side=BUY&type=MARKET&quantity=0.016667&timestamp=") {
			t.Errorf("unexpected payload: %s", payload)
		}
		if !creds.Verify(payload, sig) {
			t.Errorf("signature does not cover payload: %s", raw)
		}

		w.Write([]byte(`{"orderId": 12345, "status": "FILLED", "executedQty": "0.016667",
			"fills": [{"price": "59990.10", "qty": "0.016667"}]}`))
	}))
	defer srv.Close()

	res, err := newOrderClient(srv.URL).SubmitOrder(context.Background(), approvedTrade(model.ActionBuy))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.ExchangeOrderID != "12345" {
		t.Errorf("expected order id 12345, got %s", res.ExchangeOrderID)
	}
	if res.ExecutedPrice != 59990.10 {
		t.Errorf("expected first-fill price 59990.10, got %v", res.ExecutedPrice)
	}
	if res.ExecutedQty != 0.016667 {
		t.Errorf("expected executed qty 0.016667, got %v", res.ExecutedQty)
	}
}

func TestOrderClientFallsBackWithoutFills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// testnet sometimes reports no fills and an empty executedQty
		w.Write([]byte(`{"orderId": 7, "status": "FILLED", "executedQty": "", "fills": []}`))
	}))
	defer srv.Close()

	res, err := newOrderClient(srv.URL).SubmitOrder(context.Background(), approvedTrade(model.ActionBuy))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.ExecutedQty != 0.016667 {
		t.Errorf("expected requested qty fallback, got %v", res.ExecutedQty)
	}
	if res.ExecutedPrice != 60000 {
		t.Errorf("expected proposal price fallback, got %v", res.ExecutedPrice)
	}
}

func TestOrderClientMapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -2010, "msg": "Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	_, err := newOrderClient(srv.URL).SubmitOrder(context.Background(), approvedTrade(model.ActionSell))
	if err == nil {
		t.Fatal("expected error")
	}

	var exErr *model.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %T: %v", err, err)
	}
	if exErr.Code != -2010 {
		t.Errorf("expected code -2010, got %d", exErr.Code)
	}
	if !strings.Contains(exErr.Message, "insufficient balance") {
		t.Errorf("unexpected message: %s", exErr.Message)
	}
}

func TestOrderClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"orderId": 1, "status": "FILLED", "executedQty": "1"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newOrderClient(srv.URL).SubmitOrder(ctx, approvedTrade(model.ActionBuy))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
