package config

import (
	"errors"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		EvaluateEveryMin int    `toml:"evaluate_every_min"`
		ListenAddr       string `toml:"listen_addr"`
		LogLevel         string `toml:"log_level"`
	} `toml:"app"`

	Symbols struct {
		List []string `toml:"list"`
	} `toml:"symbols"`

	Trading struct {
		MaxPositionValue float64 `toml:"max_position_value"`
		AlgorithmEnabled bool    `toml:"algorithm_enabled"`
	} `toml:"trading"`

	Exchange struct {
		Binance struct {
			RestURL         string `toml:"rest_url"`
			OrderURL        string `toml:"order_url"`
			WsURL           string `toml:"ws_url"`
			Quote           string `toml:"quote"`
			OrderTimeoutSec int    `toml:"order_timeout_sec"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Storage struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
		DSN    string `toml:"dsn"`
	} `toml:"storage"`

	Redis struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Prefix  string `toml:"prefix"`
	} `toml:"redis"`

	Notify struct {
		WebhookURL string `toml:"webhook_url"`
	} `toml:"notify"`
}

// Credentials are loaded from the environment, never from the TOML file.
type Credentials struct {
	BinanceAPIKey    string
	BinanceAPISecret string
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCredentials reads exchange credentials from the environment,
// after sourcing an optional .env file in the working directory.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load()

	creds := Credentials{
		BinanceAPIKey:    strings.TrimSpace(os.Getenv("BINANCE_API_KEY")),
		BinanceAPISecret: strings.TrimSpace(os.Getenv("BINANCE_API_SECRET")),
	}
	if creds.BinanceAPIKey == "" || creds.BinanceAPISecret == "" {
		return creds, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET must be set")
	}
	return creds, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.EvaluateEveryMin <= 0 {
		cfg.App.EvaluateEveryMin = 5
	}
	if cfg.App.ListenAddr == "" {
		cfg.App.ListenAddr = ":8080"
	}
	if cfg.Trading.MaxPositionValue <= 0 {
		cfg.Trading.MaxPositionValue = 1000
	}
	if cfg.Exchange.Binance.RestURL == "" {
		cfg.Exchange.Binance.RestURL = "https://api.binance.com"
	}
	if cfg.Exchange.Binance.OrderURL == "" {
		cfg.Exchange.Binance.OrderURL = "https://testnet.binance.vision"
	}
	if cfg.Exchange.Binance.WsURL == "" {
		cfg.Exchange.Binance.WsURL = "wss://stream.binance.com:9443"
	}
	if cfg.Exchange.Binance.Quote == "" {
		cfg.Exchange.Binance.Quote = "USDT"
	}
	if cfg.Exchange.Binance.OrderTimeoutSec <= 0 {
		cfg.Exchange.Binance.OrderTimeoutSec = 10
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/tradepilot.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "tradepilot"
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)
	if len(cfg.Symbols.List) == 0 {
		return errors.New("symbols.list is empty")
	}

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("storage.dsn required for postgres driver")
		}
	default:
		return errors.New("unknown storage.driver: " + cfg.Storage.Driver)
	}

	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
