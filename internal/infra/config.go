package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dca_ladder/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Exchange and storage drivers.
const (
	DriverBitget = "bitget"
	DriverPaper  = "paper"

	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// DefaultBitgetRestURL is used when exchange.bitget.rest_url is empty.
const DefaultBitgetRestURL = "https://api.bitget.com"

// Config holds every setting of the bot.
// Secrets are overridden from the environment after LoadConfig parses the file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Strategy struct {
		Pair              string            `yaml:"pair"`
		StartAmount       decimal.Decimal   `yaml:"start_amount"`
		StartPricePercent decimal.Decimal   `yaml:"start_price_percent"`
		DCA               []decimal.Decimal `yaml:"dca"`
		Profit            decimal.Decimal   `yaml:"profit"`
		SecondsToKeepDCA  int64             `yaml:"seconds_to_keep_dca"`
		Live              bool              `yaml:"live"`
	} `yaml:"strategy"`

	Engine struct {
		PollIntervalMS int    `yaml:"poll_interval_ms"`
		RetryAttempts  int    `yaml:"retry_attempts"`
		CancelPasses   int    `yaml:"cancel_passes"`
		DumpPath       string `yaml:"dump_path"`
	} `yaml:"engine"`

	Exchange struct {
		Driver string `yaml:"driver"`
		Bitget struct {
			RestURL     string `yaml:"rest_url"`
			AccessKey   string `yaml:"access_key"`
			SecretKey   string `yaml:"secret_key"`
			Passphrase  string `yaml:"passphrase"`
			RateLimitMS int    `yaml:"rate_limit_ms"`
		} `yaml:"bitget"`
		Paper struct {
			MinOrderSize    decimal.Decimal            `yaml:"min_order_size"`
			AmountPrecision int32                      `yaml:"amount_precision"`
			PricePrecision  int32                      `yaml:"price_precision"`
			Balances        map[string]decimal.Decimal `yaml:"balances"`
			Ask             decimal.Decimal            `yaml:"ask"`        // Static ask when no price feed is used
			PriceFeed       bool                       `yaml:"price_feed"` // Follow the public Bitget ticker
		} `yaml:"paper"`
	} `yaml:"exchange"`

	Storage struct {
		Driver string `yaml:"driver"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Key      string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Metrics struct {
		Listen string `yaml:"listen"` // Empty disables the /metrics endpoint
	} `yaml:"metrics"`

	Report struct {
		Cron string `yaml:"cron"`
	} `yaml:"report"`

	Notify struct {
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   int64  `yaml:"chat_id"`
			APIURL   string `yaml:"api_url"`
		} `yaml:"telegram"`
	} `yaml:"notify"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads .env (when present), parses the YAML file, applies defaults and
// environment overrides, then validates the result.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML bytes into a validated Config.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	cfg.Strategy.SecondsToKeepDCA = -1
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Secrets never need to live in the config file
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalMS == 0 {
		cfg.Engine.PollIntervalMS = 3000
	}
	if cfg.Engine.RetryAttempts == 0 {
		cfg.Engine.RetryAttempts = 5
	}
	if cfg.Engine.CancelPasses == 0 {
		cfg.Engine.CancelPasses = 3
	}
	if cfg.Engine.DumpPath == "" {
		cfg.Engine.DumpPath = "ladder_dump.json"
	}
	if cfg.Exchange.Driver == "" {
		cfg.Exchange.Driver = DriverPaper
	}
	if cfg.Exchange.Bitget.RestURL == "" {
		cfg.Exchange.Bitget.RestURL = DefaultBitgetRestURL
	}
	if cfg.Exchange.Bitget.RateLimitMS == 0 {
		cfg.Exchange.Bitget.RateLimitMS = 55
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StoreSQLite
	}
	if cfg.Report.Cron == "" {
		cfg.Report.Cron = "@every 5m"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	// Strategy
	if _, err := domain.ParsePair(c.Strategy.Pair); err != nil {
		return &domain.ConfigError{Field: "strategy.pair", Err: err}
	}
	if !c.Strategy.StartAmount.IsPositive() {
		return &domain.ConfigError{Field: "strategy.start_amount", Err: errors.New("must be positive")}
	}
	if c.Strategy.StartPricePercent.IsNegative() {
		return &domain.ConfigError{Field: "strategy.start_price_percent", Err: errors.New("must not be negative")}
	}
	for i, step := range c.Strategy.DCA {
		if !step.IsPositive() {
			return &domain.ConfigError{Field: fmt.Sprintf("strategy.dca[%d]", i), Err: errors.New("must be positive")}
		}
	}
	if !c.Strategy.Profit.IsPositive() || c.Strategy.Profit.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return &domain.ConfigError{Field: "strategy.profit", Err: errors.New("must be between 0 and 100")}
	}
	if c.Strategy.SecondsToKeepDCA < -1 {
		return &domain.ConfigError{Field: "strategy.seconds_to_keep_dca", Err: errors.New("must be -1 or a number of seconds")}
	}

	// Engine
	if c.Engine.PollIntervalMS <= 0 {
		return &domain.ConfigError{Field: "engine.poll_interval_ms", Err: errors.New("must be positive")}
	}
	if c.Engine.RetryAttempts <= 0 || c.Engine.CancelPasses <= 0 {
		return &domain.ConfigError{Field: "engine", Err: errors.New("retry_attempts and cancel_passes must be positive")}
	}

	// Exchange
	switch c.Exchange.Driver {
	case DriverBitget:
		if !strings.HasPrefix(c.Exchange.Bitget.RestURL, "https://") && !strings.HasPrefix(c.Exchange.Bitget.RestURL, "http://") {
			return &domain.ConfigError{Field: "exchange.bitget.rest_url", Err: fmt.Errorf("invalid URL %q", c.Exchange.Bitget.RestURL)}
		}
		if c.Strategy.Live && (c.Exchange.Bitget.AccessKey == "" || c.Exchange.Bitget.SecretKey == "") {
			return &domain.ConfigError{Field: "exchange.bitget", Err: errors.New("api credentials are required in live mode")}
		}
	case DriverPaper:
		if c.Exchange.Paper.AmountPrecision < 0 || c.Exchange.Paper.PricePrecision < 0 {
			return &domain.ConfigError{Field: "exchange.paper", Err: errors.New("precisions must not be negative")}
		}
	default:
		return &domain.ConfigError{Field: "exchange.driver", Err: fmt.Errorf("unknown driver %q", c.Exchange.Driver)}
	}

	// Storage
	switch c.Storage.Driver {
	case StoreSQLite, StoreMemory:
	case StoreRedis:
		if c.Storage.Redis.Addr == "" {
			return &domain.ConfigError{Field: "storage.redis.addr", Err: errors.New("required")}
		}
	default:
		return &domain.ConfigError{Field: "storage.driver", Err: fmt.Errorf("unknown driver %q", c.Storage.Driver)}
	}

	return nil
}

// StrategyConfig converts the strategy section into the domain type.
func (c *Config) StrategyConfig() (domain.StrategyConfig, error) {
	pair, err := domain.ParsePair(c.Strategy.Pair)
	if err != nil {
		return domain.StrategyConfig{}, &domain.ConfigError{Field: "strategy.pair", Err: err}
	}
	return domain.StrategyConfig{
		Pair:              pair,
		StartAmount:       c.Strategy.StartAmount,
		StartPricePercent: c.Strategy.StartPricePercent,
		DCA:               append([]decimal.Decimal(nil), c.Strategy.DCA...),
		Profit:            c.Strategy.Profit,
		SecondsToKeepDCA:  c.Strategy.SecondsToKeepDCA,
		Live:              c.Strategy.Live,
	}, nil
}

// PollInterval returns the delay between reconciliation cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMS) * time.Millisecond
}

// overrideWithEnv overwrites secrets with environment variables when they are set.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("DCA_BITGET_KEY"); key != "" {
		cfg.Exchange.Bitget.AccessKey = key
	}
	if secret := os.Getenv("DCA_BITGET_SECRET"); secret != "" {
		cfg.Exchange.Bitget.SecretKey = secret
	}
	if pass := os.Getenv("DCA_BITGET_PASSPHRASE"); pass != "" {
		cfg.Exchange.Bitget.Passphrase = pass
	}
	if pass := os.Getenv("DCA_REDIS_PASSWORD"); pass != "" {
		cfg.Storage.Redis.Password = pass
	}
	if token := os.Getenv("DCA_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.BotToken = token
	}
}
