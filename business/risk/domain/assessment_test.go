package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOverallLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0, LevelLow},
		{0.39, LevelLow},
		{0.4, LevelMedium},
		{0.6, LevelHigh},
		{0.8, LevelCritical},
		{1, LevelCritical},
	}
	for _, tt := range tests {
		if got := OverallLevel(tt.score); got != tt.want {
			t.Errorf("OverallLevel(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestThresholds_NoCriticalBound(t *testing.T) {
	th := Thresholds{Medium: 0.3, High: 0.6}
	if got := th.Level(1); got != LevelHigh {
		t.Errorf("Level(1) = %v, want high", got)
	}
	if got := th.Level(0.29); got != LevelLow {
		t.Errorf("Level(0.29) = %v, want low", got)
	}
}

func TestTradeStats(t *testing.T) {
	var s TradeStats
	if s.WinRate() != 0 || !s.AvgWin().IsZero() || !s.AvgLoss().IsZero() {
		t.Fatalf("empty stats = %+v", s)
	}

	for _, pnl := range []string{"12", "-4", "0", "6", "-2"} {
		s.Record(decimal.RequireFromString(pnl))
	}

	if s.Wins != 2 || s.Losses != 2 || s.Trades() != 4 {
		t.Errorf("counts = %d/%d", s.Wins, s.Losses)
	}
	if s.WinRate() != 0.5 {
		t.Errorf("WinRate() = %v", s.WinRate())
	}
	if got := s.AvgWin().String(); got != "9" {
		t.Errorf("AvgWin() = %s", got)
	}
	if got := s.AvgLoss().String(); got != "3" {
		t.Errorf("AvgLoss() = %s", got)
	}
	if got := s.Realized.String(); got != "12" {
		t.Errorf("Realized = %s", got)
	}
}
