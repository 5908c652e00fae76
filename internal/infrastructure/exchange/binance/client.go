package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// Credentials holds the API key pair and signs request payloads.
type Credentials struct {
	apiKey    string
	apiSecret string
}

func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign returns the hex HMAC-SHA256 digest of payload. The payload must
// be the final parameter string: anything appended after signing
// invalidates the request.
func (c *Credentials) Sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature is the valid digest for payload.
func (c *Credentials) Verify(payload, signature string) bool {
	want, err := hex.DecodeString(c.Sign(payload))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// APIKey returns the key sent in the X-MBX-APIKEY header.
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// APIClient bundles credentials, HTTP client and base URL for the
// signed REST endpoints.
type APIClient struct {
	credentials *Credentials
	httpClient  *http.Client
	baseURL     string
}

func NewAPIClient(apiKey, apiSecret, baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "https://testnet.binance.vision"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		credentials: NewCredentials(apiKey, apiSecret),
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
	}
}

func (c *APIClient) Credentials() *Credentials { return c.credentials }
