package exchange

import "strings"

// PairConverter maps between base coins and exchange trading pairs.
type PairConverter interface {
	// Pair2Coin converts a trading pair to its base coin.
	// e.g. BTCUSDT -> BTC
	Pair2Coin(pair string) string

	// Coin2Pair converts a base coin to its trading pair.
	// e.g. BTC -> BTCUSDT
	Coin2Pair(coin string) string

	// Quote returns the quote suffix, e.g. USDT.
	Quote() string
}

// QuotePairConverter appends/strips a fixed quote currency suffix.
type QuotePairConverter struct {
	quote string
}

func NewQuotePairConverter(quote string) *QuotePairConverter {
	return &QuotePairConverter{quote: strings.ToUpper(strings.TrimSpace(quote))}
}

func (c *QuotePairConverter) Quote() string {
	return c.quote
}

func (c *QuotePairConverter) Pair2Coin(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	if p == "" {
		return ""
	}
	return strings.TrimSuffix(p, c.quote)
}

func (c *QuotePairConverter) Coin2Pair(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ""
	}
	if strings.HasSuffix(coin, c.quote) {
		return coin
	}
	return coin + c.quote
}
