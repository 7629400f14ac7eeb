// Package reporter contains the pipeline's display adapters.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	"github.com/fd1az/spatial-arb/business/pipeline/domain"
	riskApp "github.com/fd1az/spatial-arb/business/risk/app"
)

const (
	rule = "================================================================================"
	thin = "--------------------------------------------------------------------------------"
)

// Console writes pipeline activity as plain text.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	// venue -> last reported state, so only changes are printed
	venues map[string]bool
}

// NewConsole creates a console reporter writing to out, or stdout when out
// is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out, venues: make(map[string]bool)}
}

// Start prints the banner.
func (r *Console) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Arbitrage Pipeline Started")
	fmt.Fprintln(r.out, "==========================")
	return nil
}

// Report prints an opportunity when it is detected and when it reaches a
// terminal status. Intermediate states are skipped.
func (r *Console) Report(opp *arbDomain.Opportunity) {
	if opp == nil {
		return
	}
	switch {
	case opp.Status == arbDomain.StatusDetected:
		r.printDetected(opp)
	case opp.Status.IsTerminal():
		r.printOutcome(opp)
	}
}

func (r *Console) printDetected(opp *arbDomain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY DETECTED")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "ID:             %s\n", opp.ID)
	fmt.Fprintf(r.out, "Detected:       %s\n", opp.DetectedAt.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Expires:        %s\n", opp.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Symbol:         %s\n", opp.Symbol)
	fmt.Fprintf(r.out, "Route:          %s\n", opp.Direction().String())
	fmt.Fprintln(r.out, thin)
	fmt.Fprintln(r.out, "PRICES")
	fmt.Fprintf(r.out, "  %-16s%s\n", "Buy ("+opp.BuyVenue+"):", opp.BuyPrice.String())
	fmt.Fprintf(r.out, "  %-16s%s\n", "Sell ("+opp.SellVenue+"):", opp.SellPrice.String())
	fmt.Fprintf(r.out, "  Spread:         %s (%s%%)\n", opp.Spread.String(), opp.SpreadPercent.StringFixed(4))
	fmt.Fprintln(r.out, thin)
	fmt.Fprintln(r.out, "TRADE DETAILS")
	fmt.Fprintf(r.out, "  Amount:         %s\n", opp.Amount.String())
	fmt.Fprintf(r.out, "  Capital:        %s\n", opp.RequiredCapital.StringFixed(2))
	fmt.Fprintf(r.out, "  Fees:           %s\n", opp.EstimatedFees.StringFixed(4))
	fmt.Fprintln(r.out, thin)
	fmt.Fprintln(r.out, "PROFIT")
	fmt.Fprintf(r.out, "  Gross:          %s\n", opp.GrossProfit.StringFixed(4))
	fmt.Fprintf(r.out, "  Net:            %s (%s%%)\n", opp.NetProfit.StringFixed(4), opp.NetProfitPercent.StringFixed(4))
	fmt.Fprintf(r.out, "  Confidence:     %.3f\n", opp.Confidence)
	fmt.Fprintf(r.out, "  Risk score:     %.3f\n", opp.RiskScore)
	fmt.Fprintln(r.out, rule)
}

func (r *Console) printOutcome(opp *arbDomain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("[%s] %s %s %s: %s",
		opp.UpdatedAt.Format("15:04:05"), opp.ID, opp.Symbol, opp.Direction().String(), opp.Status)
	switch opp.Status {
	case arbDomain.StatusCompleted, arbDomain.StatusFailed:
		line += " pnl=" + opp.RealizedPnL.StringFixed(4)
	case arbDomain.StatusRejected:
		for _, b := range opp.Blockers {
			line += " [" + b.Reason + "]"
		}
	}
	fmt.Fprintln(r.out, line)
}

// UpdateScan prints a one line scan summary.
func (r *Console) UpdateScan(summary domain.ScanSummary, stats domain.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "[%s] scan #%d: points=%d errors=%d detected=%d queued=%d dup=%d dropped=%d took=%s | approved=%d rejected=%d completed=%d failed=%d pnl=%s\n",
		summary.At.Format("15:04:05"), stats.Scans,
		summary.Points, summary.Errors, summary.Detected, summary.Enqueued, summary.Duplicates, summary.Dropped,
		summary.Duration.Round(time.Millisecond),
		stats.Approved, stats.Rejected, stats.Completed, stats.Failed, stats.RealizedPnL.StringFixed(2),
	)
}

// UpdateConnectionStatus prints venue connection changes.
func (r *Console) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.venues[name]; ok && prev == connected {
		return
	}
	r.venues[name] = connected

	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency.Round(time.Millisecond))
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// BreakerEvent prints circuit breaker changes.
func (r *Console) BreakerEvent(event riskApp.BreakerEvent, cumulative decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] circuit breaker %s (window pnl %s)\n",
		time.Now().Format("15:04:05"), event, cumulative.StringFixed(2))
}

// Summary prints the cumulative stats, for shutdown.
func (r *Console) Summary(stats domain.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "SESSION SUMMARY")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Scans:          %d\n", stats.Scans)
	fmt.Fprintf(r.out, "Detected:       %d (queued %d, duplicates %d, dropped %d)\n", stats.Detected, stats.Enqueued, stats.Duplicates, stats.Dropped)
	fmt.Fprintf(r.out, "Approved:       %d\n", stats.Approved)
	fmt.Fprintf(r.out, "Rejected:       %d\n", stats.Rejected)
	fmt.Fprintf(r.out, "Expired:        %d\n", stats.Expired)
	fmt.Fprintf(r.out, "Completed:      %d\n", stats.Completed)
	fmt.Fprintf(r.out, "Failed:         %d\n", stats.Failed)
	fmt.Fprintf(r.out, "Realized P&L:   %s\n", stats.RealizedPnL.StringFixed(4))

	if len(stats.RejectReasons) > 0 {
		reasons := make([]string, 0, len(stats.RejectReasons))
		for k := range stats.RejectReasons {
			reasons = append(reasons, k)
		}
		sort.Strings(reasons)
		fmt.Fprintln(r.out, thin)
		fmt.Fprintln(r.out, "REJECTIONS")
		for _, k := range reasons {
			fmt.Fprintf(r.out, "  %-20s %d\n", k, stats.RejectReasons[k])
		}
	}
	fmt.Fprintln(r.out, rule)
}

// Stop prints the closing line.
func (r *Console) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Pipeline Stopped")
	return nil
}
