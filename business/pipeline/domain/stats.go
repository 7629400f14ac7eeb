// Package domain contains the pipeline statistics types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanSummary describes one scanner cycle.
type ScanSummary struct {
	At         time.Time
	Duration   time.Duration
	Points     int
	Errors     int
	Detected   int
	Enqueued   int
	Duplicates int
	Dropped    int
}

// Stats are the cumulative pipeline counters.
type Stats struct {
	Scans       int64
	Detected    int64
	Enqueued    int64
	Duplicates  int64
	Dropped     int64
	Expired     int64
	Approved    int64
	Rejected    int64
	Completed   int64
	Failed      int64
	RealizedPnL decimal.Decimal

	RejectReasons map[string]int64
	QueueLen      int
	LastScan      ScanSummary
}

// Clone returns a copy that shares no maps.
func (s Stats) Clone() Stats {
	out := s
	out.RejectReasons = make(map[string]int64, len(s.RejectReasons))
	for k, v := range s.RejectReasons {
		out.RejectReasons[k] = v
	}
	return out
}
