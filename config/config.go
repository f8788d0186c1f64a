// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds everything the service reads from the environment at boot.
type Config struct {
	Port           string
	DatabaseURL    string
	ServiceToken   string
	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SyncServiceURL string
	MarketDataURL  string
	AuthServiceURL string
	AuthServiceKey string

	RankingInterval   time.Duration
	StatusInterval    time.Duration
	PriceSyncInterval time.Duration
	SnapshotHour      int
	AutoSettle        bool

	DefaultInitialBalance decimal.Decimal
	Trading               TradingConfig
	Eligibility           EligibilityConfig

	R2 R2Config

	LogLevel  string
	LogFormat string
}

// TradingConfig carries fee and lot rules for simulated orders.
type TradingConfig struct {
	LotSize         int64
	BrokerageRate   decimal.Decimal
	MinBrokerageFee decimal.Decimal
	SellTaxRate     decimal.Decimal
	EnforceHours    bool
	MarketOpenHour  int
	MarketCloseHour int
	// PriceBandPercent bounds how far a client price may stray from the quote.
	PriceBandPercent decimal.Decimal
}

// EligibilityConfig holds the author payout thresholds.
type EligibilityConfig struct {
	MinArticles         int
	ArticleWindowDays   int
	MinUniqueReaders    int
	ReaderWindowDays    int
	NearThresholdReader int
	CompleteReadScroll  float64
	EvaluationHour      int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough R2 credentials exist to archive reports.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5200")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RANKING_INTERVAL", "30s")
	v.SetDefault("STATUS_INTERVAL", "1m")
	v.SetDefault("PRICE_SYNC_INTERVAL", "10s")
	v.SetDefault("SNAPSHOT_HOUR", 15)
	v.SetDefault("ELIGIBILITY_HOUR", 2)
	v.SetDefault("AUTO_SETTLE", true)
	v.SetDefault("DEFAULT_INITIAL_BALANCE", "1000000")
	v.SetDefault("TRADE_LOT_SIZE", 1)
	v.SetDefault("BROKERAGE_RATE", "0.001425")
	v.SetDefault("MIN_BROKERAGE_FEE", "20")
	v.SetDefault("SELL_TAX_RATE", "0.003")
	v.SetDefault("TRADE_PRICE_BAND", "5")
	v.SetDefault("TRADING_HOURS_ENFORCED", false)
	v.SetDefault("MARKET_OPEN_HOUR", 9)
	v.SetDefault("MARKET_CLOSE_HOUR", 16)
	v.SetDefault("ELIGIBILITY_MIN_ARTICLES", 1)
	v.SetDefault("ELIGIBILITY_ARTICLE_WINDOW_DAYS", 90)
	v.SetDefault("ELIGIBILITY_MIN_READERS", 100)
	v.SetDefault("ELIGIBILITY_READER_WINDOW_DAYS", 30)
	v.SetDefault("ELIGIBILITY_NEAR_THRESHOLD", 20)
	v.SetDefault("COMPLETE_READ_SCROLL", 80.0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("⚠️  No .env file found, reading environment variables directly")
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:           v.GetString("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		ServiceToken:   v.GetString("SERVICE_TOKEN"),
		AllowedOrigins: splitOrigins(v.GetString("ALLOWED_ORIGINS")),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		SyncServiceURL: v.GetString("SYNC_SERVICE_URL"),
		MarketDataURL:  v.GetString("MARKET_DATA_URL"),
		AuthServiceURL: v.GetString("AUTH_SERVICE_URL"),
		AuthServiceKey: v.GetString("AUTH_SERVICE_TOKEN"),

		RankingInterval:   v.GetDuration("RANKING_INTERVAL"),
		StatusInterval:    v.GetDuration("STATUS_INTERVAL"),
		PriceSyncInterval: v.GetDuration("PRICE_SYNC_INTERVAL"),
		SnapshotHour:      v.GetInt("SNAPSHOT_HOUR"),
		AutoSettle:        v.GetBool("AUTO_SETTLE"),

		Trading: TradingConfig{
			LotSize:         v.GetInt64("TRADE_LOT_SIZE"),
			EnforceHours:    v.GetBool("TRADING_HOURS_ENFORCED"),
			MarketOpenHour:  v.GetInt("MARKET_OPEN_HOUR"),
			MarketCloseHour: v.GetInt("MARKET_CLOSE_HOUR"),
		},
		Eligibility: EligibilityConfig{
			MinArticles:         v.GetInt("ELIGIBILITY_MIN_ARTICLES"),
			ArticleWindowDays:   v.GetInt("ELIGIBILITY_ARTICLE_WINDOW_DAYS"),
			MinUniqueReaders:    v.GetInt("ELIGIBILITY_MIN_READERS"),
			ReaderWindowDays:    v.GetInt("ELIGIBILITY_READER_WINDOW_DAYS"),
			NearThresholdReader: v.GetInt("ELIGIBILITY_NEAR_THRESHOLD"),
			CompleteReadScroll:  v.GetFloat64("COMPLETE_READ_SCROLL"),
			EvaluationHour:      v.GetInt("ELIGIBILITY_HOUR"),
		},
		R2: R2Config{
			AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			CDNBaseURL:      v.GetString("CDN_BASE_URL"),
		},
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	var err error
	if cfg.DefaultInitialBalance, err = decimalKey(v, "DEFAULT_INITIAL_BALANCE"); err != nil {
		return nil, err
	}
	if cfg.Trading.BrokerageRate, err = decimalKey(v, "BROKERAGE_RATE"); err != nil {
		return nil, err
	}
	if cfg.Trading.MinBrokerageFee, err = decimalKey(v, "MIN_BROKERAGE_FEE"); err != nil {
		return nil, err
	}
	if cfg.Trading.SellTaxRate, err = decimalKey(v, "SELL_TAX_RATE"); err != nil {
		return nil, err
	}
	if cfg.Trading.PriceBandPercent, err = decimalKey(v, "TRADE_PRICE_BAND"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	if c.ServiceToken == "" {
		return errors.New("SERVICE_TOKEN is not set — service cannot authenticate Gateway")
	}
	if c.RankingInterval <= 0 {
		return fmt.Errorf("RANKING_INTERVAL must be positive, got %s", c.RankingInterval)
	}
	if c.Trading.LotSize <= 0 {
		return fmt.Errorf("TRADE_LOT_SIZE must be positive, got %d", c.Trading.LotSize)
	}
	if c.Eligibility.EvaluationHour < 0 || c.Eligibility.EvaluationHour > 23 || c.SnapshotHour < 0 || c.SnapshotHour > 23 {
		return errors.New("SNAPSHOT_HOUR and ELIGIBILITY_HOUR must be within 0-23")
	}
	return nil
}

func decimalKey(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not a valid decimal: %w", key, err)
	}
	return d, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithError(err).Warnf("⚠️  Unknown LOG_LEVEL %q, falling back to info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
