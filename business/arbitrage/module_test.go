package arbitrage

import (
	"testing"
	"time"

	"github.com/fd1az/spatial-arb/internal/config"
)

func TestFeeSchedule(t *testing.T) {
	fee, sell := 0.001, 0.0004
	cfg := &config.Config{
		Detection: config.DetectionConfig{DefaultTakerFee: 0.002},
		Venues: map[string]config.VenueConfig{
			"binance": {Enabled: true, TakerFee: &fee, SellTakerFee: &sell},
			"kraken":  {Enabled: true},
		},
	}

	fs := FeeSchedule(cfg)
	if got := fs.BuyRate("binance").String(); got != "0.001" {
		t.Errorf("binance buy = %s", got)
	}
	if got := fs.SellRate("binance").String(); got != "0.0004" {
		t.Errorf("binance sell = %s", got)
	}
	if got := fs.SellRate("kraken").String(); got != "0.002" {
		t.Errorf("kraken sell = %s, want default", got)
	}
	if got := fs.BuyRate("unknown").String(); got != "0.002" {
		t.Errorf("unknown buy = %s, want default", got)
	}
}

func TestDetectionParams(t *testing.T) {
	cfg := &config.Config{Detection: config.DetectionConfig{
		MinSpreadPercent:    0.5,
		MaxPositionSize:     1000,
		ConfidenceThreshold: 0.7,
		TopK:                10,
		StalenessWindow:     10 * time.Second,
	}}

	p := DetectionParams(cfg)
	if p.MinSpreadPercent.String() != "0.5" || p.MaxPositionSize.String() != "1000" {
		t.Errorf("params = %+v", p)
	}
	if p.TTL != 60*time.Second {
		t.Errorf("TTL = %v, want default 60s", p.TTL)
	}
}
