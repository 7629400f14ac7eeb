// Package domain contains the core domain types for the risk context.
package domain

import (
	"time"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
)

// Level is a coarse risk bucket.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// OverallLevel buckets the weighted score at 0.4, 0.6 and 0.8.
func OverallLevel(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Thresholds are the lower bounds of the Medium, High and Critical levels
// of one metric. A zero bound disables that level.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// Level buckets v.
func (t Thresholds) Level(v float64) Level {
	switch {
	case t.Critical > 0 && v >= t.Critical:
		return LevelCritical
	case t.High > 0 && v >= t.High:
		return LevelHigh
	case t.Medium > 0 && v >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Metric names.
const (
	MetricMarket        = "market"
	MetricLiquidity     = "liquidity"
	MetricConcentration = "concentration"
	MetricCounterparty  = "counterparty"
)

// Metric is one scored risk dimension.
type Metric struct {
	Name        string
	Value       float64 // 0..1
	Threshold   float64 // the High bound
	Level       Level
	Description string
}

// Blocker reasons.
const (
	ReasonCircuitBreaker    = "circuit_breaker"
	ReasonEmergencyStop     = "emergency_stop"
	ReasonDailyLossLimit    = "daily_loss_limit"
	ReasonLowConfidence     = "low_confidence"
	ReasonRiskScore         = "risk_score"
	ReasonMarketCritical    = "market_risk_critical"
	ReasonLiquidityCritical = "liquidity_risk_critical"
)

// Assessment is the gate decision for one opportunity.
type Assessment struct {
	OpportunityID string
	Score         float64
	Level         Level
	Approved      bool
	Metrics       []Metric
	Warnings      []string
	Blockers      []arbDomain.Blocker
	Timestamp     time.Time
}

// Metric returns the named metric.
func (a *Assessment) Metric(name string) (Metric, bool) {
	for _, m := range a.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// HasBlocker reports whether reason is among the blockers.
func (a *Assessment) HasBlocker(reason string) bool {
	for _, b := range a.Blockers {
		if b.Reason == reason {
			return true
		}
	}
	return false
}
