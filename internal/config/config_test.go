package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test-arb\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Name != "test-arb" {
		t.Errorf("App.Name = %q", cfg.App.Name)
	}
	if got := cfg.EnabledVenues(); len(got) != 2 || got[0] != "sim-a" || got[1] != "sim-b" {
		t.Errorf("EnabledVenues() = %v, want simulated pair", got)
	}
	if cfg.Detection.OpportunityTTL != 60*time.Second {
		t.Errorf("OpportunityTTL = %v", cfg.Detection.OpportunityTTL)
	}
	if cfg.Pipeline.QueueCapacity != 100 {
		t.Errorf("QueueCapacity = %d", cfg.Pipeline.QueueCapacity)
	}
	if len(cfg.Risk.VolatilityTiers) != 2 || cfg.Risk.VolatilityTiers[0].AboveSpreadPercent != 2 {
		t.Errorf("VolatilityTiers = %+v", cfg.Risk.VolatilityTiers)
	}
	if cfg.Risk.CircuitBreaker.Cooldown != 30*time.Minute {
		t.Errorf("Cooldown = %v", cfg.Risk.CircuitBreaker.Cooldown)
	}
}

func TestLoad_ConfiguredVenuesReplaceDefaults(t *testing.T) {
	body := `
venues:
  binance:
    enabled: true
    kind: binance
    taker_fee: 0.001
  kraken:
    enabled: true
    kind: kraken
  bybit:
    enabled: false
    kind: bybit
symbols: ["BTC/USDT"]
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, ok := cfg.Venues["sim-a"]; ok {
		t.Error("simulated defaults should not be merged into configured venues")
	}
	got := cfg.EnabledVenues()
	if len(got) != 2 || got[0] != "binance" || got[1] != "kraken" {
		t.Errorf("EnabledVenues() = %v", got)
	}
	if fee := cfg.Venues["binance"].TakerFee; fee == nil || *fee != 0.001 {
		t.Errorf("binance taker fee = %v", fee)
	}
	if cfg.Venues["kraken"].TakerFee != nil {
		t.Error("unset taker fee should stay nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ARB_LOG_LEVEL", "debug")
	t.Setenv("ARB_EMERGENCY_STOP", "true")

	cfg, err := Load(writeConfig(t, "app:\n  log_level: info\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want env override", cfg.App.LogLevel)
	}
	if !cfg.Risk.EmergencyStop {
		t.Error("EmergencyStop should be set from env")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func validConfig() *Config {
	return &Config{
		Venues:  DefaultVenues(),
		Symbols: []string{"BTC/USDT"},
		Detection: DetectionConfig{
			MinSpreadPercent:    0.5,
			MaxPositionSize:     1000,
			ConfidenceThreshold: 0.7,
			TopK:                10,
			OpportunityTTL:      time.Minute,
			StalenessWindow:     10 * time.Second,
		},
		Risk: RiskConfig{
			MaxRiskScore:   0.8,
			MinConfidence:  0.7,
			KellyFraction:  0.25,
			CircuitBreaker: CircuitBreakerConfig{LossThreshold: 100, Lookback: time.Hour, Cooldown: 30 * time.Minute},
		},
		Pipeline:  PipelineConfig{ScanInterval: time.Second, QueueCapacity: 5, FetchTimeout: time.Second},
		Execution: ExecutionConfig{InitialBalance: 1000},
	}
}

func TestValidate(t *testing.T) {
	neg := -0.1

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "no_symbols",
			mutate:  func(c *Config) { c.Symbols = nil },
			wantErr: "symbols cannot be empty",
		},
		{
			name: "single_venue",
			mutate: func(c *Config) {
				v := c.Venues["sim-b"]
				v.Enabled = false
				c.Venues["sim-b"] = v
			},
			wantErr: "at least two venues",
		},
		{
			name: "unknown_kind",
			mutate: func(c *Config) {
				v := c.Venues["sim-a"]
				v.Kind = "ftx"
				c.Venues["sim-a"] = v
			},
			wantErr: `"ftx" is not supported`,
		},
		{
			name: "negative_fee",
			mutate: func(c *Config) {
				v := c.Venues["sim-a"]
				v.SellTakerFee = &neg
				c.Venues["sim-a"] = v
			},
			wantErr: "fees must be non-negative",
		},
		{
			name:    "confidence_out_of_range",
			mutate:  func(c *Config) { c.Detection.ConfidenceThreshold = 1.5 },
			wantErr: "confidence_threshold",
		},
		{
			name:    "zero_queue",
			mutate:  func(c *Config) { c.Pipeline.QueueCapacity = 0 },
			wantErr: "queue_capacity",
		},
		{
			name:    "zero_loss_threshold",
			mutate:  func(c *Config) { c.Risk.CircuitBreaker.LossThreshold = 0 },
			wantErr: "loss_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTakerRates(t *testing.T) {
	venueFee, buyFee := 0.001, 0.0005

	tests := []struct {
		name     string
		vc       VenueConfig
		wantBuy  string
		wantSell string
	}{
		{name: "default", vc: VenueConfig{}, wantBuy: "0.002", wantSell: "0.002"},
		{name: "venue_fee", vc: VenueConfig{TakerFee: &venueFee}, wantBuy: "0.001", wantSell: "0.001"},
		{name: "side_override", vc: VenueConfig{TakerFee: &venueFee, BuyTakerFee: &buyFee}, wantBuy: "0.0005", wantSell: "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buy, sell := tt.vc.TakerRates(0.002)
			if buy.String() != tt.wantBuy || sell.String() != tt.wantSell {
				t.Errorf("TakerRates() = %s/%s, want %s/%s", buy, sell, tt.wantBuy, tt.wantSell)
			}
		})
	}
}
