package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spatial-arb/business/execution/domain"
	"github.com/fd1az/spatial-arb/internal/apperror"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func legs(buyVenue, sellVenue, buy, sell, amount, buyFee, sellFee string) []domain.Fill {
	return []domain.Fill{
		{Venue: buyVenue, Symbol: "BTC/USDT", Side: domain.SideBuy, Price: dec(buy), Amount: dec(amount), Fee: dec(buyFee)},
		{Venue: sellVenue, Symbol: "BTC/USDT", Side: domain.SideSell, Price: dec(sell), Amount: dec(amount), Fee: dec(sellFee)},
	}
}

func TestNewLedger_FundsQuoteAssets(t *testing.T) {
	l := NewLedger([]string{"binance", "kraken"}, []string{"BTC/USDT", "ETH/USDT", "ETH/BTC"}, dec("1000"))

	got := l.Balances()
	if len(got) != 4 {
		t.Fatalf("Balances() = %+v, want 2 venues x 2 quotes", got)
	}
	if got[0].Venue != "binance" || got[0].Asset != "BTC" || !got[0].Amount.Equal(dec("1000")) {
		t.Errorf("Balances()[0] = %+v", got[0])
	}

	total, err := l.TotalValue(context.Background())
	if err != nil || !total.Equal(dec("4000")) {
		t.Errorf("TotalValue() = %s, %v", total, err)
	}
}

func TestLedger_Apply(t *testing.T) {
	ctx := context.Background()
	l := NewLedger([]string{"binance", "kraken"}, []string{"BTC/USDT"}, dec("1000"))

	if err := l.Apply(legs("binance", "kraken", "100", "102", "2", "0.2", "0.2")); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := l.Available("binance", "BTC/USDT"); !got.Equal(dec("799.8")) {
		t.Errorf("binance USDT = %s, want 799.8", got)
	}
	if got := l.Available("kraken", "BTC/USDT"); !got.Equal(dec("1203.8")) {
		t.Errorf("kraken USDT = %s, want 1203.8", got)
	}

	total, _ := l.TotalValue(ctx)
	if !total.Equal(dec("2003.6")) {
		t.Errorf("TotalValue() = %s, want funded 2000 + 3.6 profit", total)
	}

	// inventory +2 on binance and -2 on kraken, marked at 101
	if got, _ := l.ExposureBySymbol(ctx, "BTC/USDT"); !got.Equal(dec("404")) {
		t.Errorf("ExposureBySymbol() = %s, want 404", got)
	}
	if got, _ := l.ExposureByVenue(ctx, "kraken"); !got.Equal(dec("202")) {
		t.Errorf("ExposureByVenue(kraken) = %s, want 202", got)
	}
	if got, _ := l.ExposureBySymbol(ctx, "ETH/USDT"); !got.IsZero() {
		t.Errorf("ExposureBySymbol(ETH) = %s", got)
	}
}

func TestLedger_ApplyRejects(t *testing.T) {
	tests := []struct {
		name  string
		fills []domain.Fill
		code  apperror.Code
	}{
		{
			name:  "insufficient_balance",
			fills: legs("binance", "kraken", "100", "102", "10", "1", "1"),
			code:  apperror.CodeInsufficientBalance,
		},
		{
			name:  "unknown_venue",
			fills: legs("ftx", "kraken", "100", "102", "1", "0", "0"),
			code:  apperror.CodeUnknownVenue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger([]string{"binance", "kraken"}, []string{"BTC/USDT"}, dec("1000"))

			err := l.Apply(tt.fills)
			if got := apperror.GetCode(err); got != tt.code {
				t.Fatalf("Apply() code = %v, want %v (err %v)", got, tt.code, err)
			}
			if got := l.Available("kraken", "BTC/USDT"); !got.Equal(dec("1000")) {
				t.Errorf("rejected apply changed kraken balance to %s", got)
			}
		})
	}
}
