// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Venues    map[string]VenueConfig `mapstructure:"venues"`
	Symbols   []string               `mapstructure:"symbols"`
	Detection DetectionConfig        `mapstructure:"detection"`
	Risk      RiskConfig             `mapstructure:"risk"`
	Pipeline  PipelineConfig         `mapstructure:"pipeline"`
	Execution ExecutionConfig        `mapstructure:"execution"`
	Redis     RedisConfig            `mapstructure:"redis"`
	Telemetry TelemetryConfig        `mapstructure:"telemetry"`
	Health    HealthConfig           `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
	TUIMode     bool   `mapstructure:"-"`
}

// VenueConfig configures one market data source.
type VenueConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Kind           string `mapstructure:"kind"` // binance, bybit, kraken, simulated
	BaseURL        string `mapstructure:"base_url"`
	WebSocketURL   string `mapstructure:"websocket_url"`
	Category       string `mapstructure:"category"` // bybit: spot, linear
	RequestsPerMin int    `mapstructure:"requests_per_min"`

	// nil means "use detection.default_taker_fee"
	TakerFee     *float64 `mapstructure:"taker_fee"`
	BuyTakerFee  *float64 `mapstructure:"buy_taker_fee"`
	SellTakerFee *float64 `mapstructure:"sell_taker_fee"`

	// simulated venue only
	BasePrices map[string]float64 `mapstructure:"base_prices"`
	Volatility float64            `mapstructure:"volatility"`
	Skew       float64            `mapstructure:"skew"`
}

// DetectionConfig holds opportunity detection parameters.
type DetectionConfig struct {
	MinSpreadPercent    float64       `mapstructure:"min_spread_percent"`
	MaxPositionSize     float64       `mapstructure:"max_position_size"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	TopK                int           `mapstructure:"top_k"`
	OpportunityTTL      time.Duration `mapstructure:"opportunity_ttl"`
	StalenessWindow     time.Duration `mapstructure:"staleness_window"`
	DefaultTakerFee     float64       `mapstructure:"default_taker_fee"`
	HistorySize         int           `mapstructure:"history_size"`
}

// RiskConfig holds risk gate parameters.
type RiskConfig struct {
	MaxRiskScore     float64              `mapstructure:"max_risk_score"`
	MinConfidence    float64              `mapstructure:"min_confidence"`
	MaxDailyLoss     float64              `mapstructure:"max_daily_loss"`
	MaxPortfolioRisk float64              `mapstructure:"max_portfolio_risk"`
	KellyFraction    float64              `mapstructure:"kelly_fraction"`
	VolatilityTiers  []VolatilityTier     `mapstructure:"volatility_tiers"`
	VolatilityFloor  float64              `mapstructure:"volatility_floor"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	EmergencyStop    bool                 `mapstructure:"emergency_stop"`
}

// VolatilityTier maps a spread percent threshold to a portfolio fraction.
type VolatilityTier struct {
	AboveSpreadPercent float64 `mapstructure:"above_spread_percent"`
	PortfolioFraction  float64 `mapstructure:"portfolio_fraction"`
}

// CircuitBreakerConfig holds the loss breaker settings.
type CircuitBreakerConfig struct {
	LossThreshold float64       `mapstructure:"loss_threshold"`
	Lookback      time.Duration `mapstructure:"lookback"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

// PipelineConfig holds scanner/processor settings.
type PipelineConfig struct {
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
}

// ExecutionConfig holds paper execution settings.
type ExecutionConfig struct {
	Mode              string        `mapstructure:"mode"`
	InitialBalance    float64       `mapstructure:"initial_balance"`
	SlippageBps       float64       `mapstructure:"slippage_bps"`
	Latency           time.Duration `mapstructure:"latency"`
	MinSpreadRetained float64       `mapstructure:"min_spread_retained"`
}

// RedisConfig holds advisory lock settings.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// map defaults would merge into a user-provided venue list, so the
	// offline pair is applied only when nothing is configured
	if len(cfg.Venues) == 0 {
		cfg.Venues = DefaultVenues()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("app.log_file", "ARB_LOG_FILE")

	_ = v.BindEnv("risk.emergency_stop", "ARB_EMERGENCY_STOP")
	_ = v.BindEnv("risk.max_daily_loss", "ARB_MAX_DAILY_LOSS")

	_ = v.BindEnv("redis.enabled", "ARB_REDIS_ENABLED")
	_ = v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	_ = v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "spatial-arb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("symbols", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("detection.min_spread_percent", 0.20)
	v.SetDefault("detection.max_position_size", 1000)
	v.SetDefault("detection.confidence_threshold", 0.7)
	v.SetDefault("detection.top_k", 10)
	v.SetDefault("detection.opportunity_ttl", "60s")
	v.SetDefault("detection.staleness_window", "10s")
	v.SetDefault("detection.default_taker_fee", 0.002)
	v.SetDefault("detection.history_size", 20)

	v.SetDefault("risk.max_risk_score", 0.8)
	v.SetDefault("risk.min_confidence", 0.7)
	v.SetDefault("risk.max_daily_loss", 50)
	v.SetDefault("risk.max_portfolio_risk", 0.05)
	v.SetDefault("risk.kelly_fraction", 0.25)
	v.SetDefault("risk.volatility_tiers", []map[string]float64{
		{"above_spread_percent": 2, "portfolio_fraction": 0.05},
		{"above_spread_percent": 1, "portfolio_fraction": 0.03},
	})
	v.SetDefault("risk.volatility_floor", 0.02)
	v.SetDefault("risk.circuit_breaker.loss_threshold", 100)
	v.SetDefault("risk.circuit_breaker.lookback", "60m")
	v.SetDefault("risk.circuit_breaker.cooldown", "30m")

	v.SetDefault("pipeline.scan_interval", "5s")
	v.SetDefault("pipeline.queue_capacity", 100)
	v.SetDefault("pipeline.fetch_timeout", "5s")
	v.SetDefault("pipeline.fetch_concurrency", 16)

	v.SetDefault("execution.mode", "paper")
	v.SetDefault("execution.initial_balance", 10000)
	v.SetDefault("execution.slippage_bps", 2)
	v.SetDefault("execution.latency", "150ms")
	v.SetDefault("execution.min_spread_retained", 0.8)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "spatial-arb")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("symbols cannot be empty"))
	}
	if len(c.EnabledVenues()) < 2 {
		errs = append(errs, errors.New("at least two venues must be enabled"))
	}
	for name, vc := range c.Venues {
		if !vc.Enabled {
			continue
		}
		switch vc.Kind {
		case "binance", "bybit", "kraken", "simulated":
		default:
			errs = append(errs, fmt.Errorf("venues.%s.kind %q is not supported", name, vc.Kind))
		}
		for _, fee := range []*float64{vc.TakerFee, vc.BuyTakerFee, vc.SellTakerFee} {
			if fee != nil && *fee < 0 {
				errs = append(errs, fmt.Errorf("venues.%s fees must be non-negative", name))
				break
			}
		}
	}

	d := c.Detection
	if d.MinSpreadPercent < 0 {
		errs = append(errs, errors.New("detection.min_spread_percent must be >= 0"))
	}
	if d.MaxPositionSize <= 0 {
		errs = append(errs, errors.New("detection.max_position_size must be > 0"))
	}
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		errs = append(errs, errors.New("detection.confidence_threshold must be in [0,1]"))
	}
	if d.TopK <= 0 {
		errs = append(errs, errors.New("detection.top_k must be > 0"))
	}
	if d.OpportunityTTL <= 0 || d.StalenessWindow <= 0 {
		errs = append(errs, errors.New("detection ttl and staleness window must be > 0"))
	}

	r := c.Risk
	if r.MaxRiskScore < 0 || r.MaxRiskScore > 1 || r.MinConfidence < 0 || r.MinConfidence > 1 {
		errs = append(errs, errors.New("risk scores must be in [0,1]"))
	}
	if r.KellyFraction < 0 || r.KellyFraction > 1 {
		errs = append(errs, errors.New("risk.kelly_fraction must be in [0,1]"))
	}
	if r.CircuitBreaker.LossThreshold <= 0 {
		errs = append(errs, errors.New("risk.circuit_breaker.loss_threshold must be > 0"))
	}
	if r.CircuitBreaker.Lookback <= 0 || r.CircuitBreaker.Cooldown < 0 {
		errs = append(errs, errors.New("risk.circuit_breaker lookback must be > 0 and cooldown >= 0"))
	}

	p := c.Pipeline
	if p.ScanInterval <= 0 || p.FetchTimeout <= 0 {
		errs = append(errs, errors.New("pipeline intervals must be > 0"))
	}
	if p.QueueCapacity <= 0 {
		errs = append(errs, errors.New("pipeline.queue_capacity must be > 0"))
	}

	if c.Execution.InitialBalance <= 0 {
		errs = append(errs, errors.New("execution.initial_balance must be > 0"))
	}

	return errors.Join(errs...)
}

// DefaultVenues returns two simulated venues with a persistent skew so the
// pipeline has something to detect without network access.
func DefaultVenues() map[string]VenueConfig {
	fee := 0.001
	prices := map[string]float64{"BTC/USDT": 65000, "ETH/USDT": 3400}
	return map[string]VenueConfig{
		"sim-a": {Enabled: true, Kind: "simulated", TakerFee: &fee, BasePrices: prices, Volatility: 0.0005},
		"sim-b": {Enabled: true, Kind: "simulated", TakerFee: &fee, BasePrices: prices, Volatility: 0.0005, Skew: 0.006},
	}
}

// EnabledVenues returns the enabled venue names.
func (c *Config) EnabledVenues() []string {
	names := make([]string, 0, len(c.Venues))
	for name, vc := range c.Venues {
		if vc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Dec converts a float config value to decimal.
func Dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// TakerRates resolves the buy and sell taker rates for a venue, falling back
// to the venue taker fee and then to def.
func (vc VenueConfig) TakerRates(def float64) (buy, sell decimal.Decimal) {
	base := def
	if vc.TakerFee != nil {
		base = *vc.TakerFee
	}
	b, s := base, base
	if vc.BuyTakerFee != nil {
		b = *vc.BuyTakerFee
	}
	if vc.SellTakerFee != nil {
		s = *vc.SellTakerFee
	}
	return decimal.NewFromFloat(b), decimal.NewFromFloat(s)
}
