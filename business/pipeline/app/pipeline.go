package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	arbApp "github.com/fd1az/spatial-arb/business/arbitrage/app"
	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	mdDomain "github.com/fd1az/spatial-arb/business/marketdata/domain"
	"github.com/fd1az/spatial-arb/business/pipeline/domain"
	riskApp "github.com/fd1az/spatial-arb/business/risk/app"
	"github.com/fd1az/spatial-arb/internal/apperror"
	"github.com/fd1az/spatial-arb/internal/logger"
)

// Rejection reasons raised by the processor itself.
const (
	ReasonLockHeld   = "lock_held"
	ReasonLockFailed = "lock_failed"
	ReasonZeroSize   = "zero_size"
)

// Config configures the loops.
type Config struct {
	Venues        []string
	Symbols       []string
	ScanInterval  time.Duration
	FetchTimeout  time.Duration
	QueueCapacity int
	LockTTL       time.Duration
	Detection     arbApp.Params
}

// Deps are the collaborators of the pipeline. Locker and Reporter are
// optional.
type Deps struct {
	Collector Collector
	Detector  Detector
	Gate      Gate
	Executor  Executor
	Locker    Locker
	Reporter  Reporter
}

// Pipeline connects a scanner goroutine to a processor goroutine through a
// drop-oldest queue.
type Pipeline struct {
	cfg     Config
	deps    Deps
	log     logger.LoggerInterface
	metrics *pipelineMetrics
	queue   *Queue
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[arbDomain.Key]struct{}
	stats    domain.Stats

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pipeline.
func New(cfg Config, deps Deps, log logger.LoggerInterface) (*Pipeline, error) {
	if deps.Collector == nil || deps.Detector == nil || deps.Gate == nil || deps.Executor == nil {
		return nil, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("pipeline: collector, detector, gate and executor are required"))
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 5 * time.Second
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	m, err := newPipelineMetrics()
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		metrics:  m,
		queue:    NewQueue(cfg.QueueCapacity),
		now:      time.Now,
		inFlight: make(map[arbDomain.Key]struct{}),
		stats:    domain.Stats{RejectReasons: make(map[string]int64)},
	}, nil
}

// Start launches the scanner and the processor. The first scan runs
// immediately.
func (p *Pipeline) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.cancel != nil {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("pipeline already running"))
	}

	if p.deps.Reporter != nil {
		if err := p.deps.Reporter.Start(ctx); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(2)
	go p.scanLoop(runCtx)
	go p.processLoop(runCtx)

	p.log.Info(ctx, "pipeline started",
		"venues", p.cfg.Venues,
		"symbols", p.cfg.Symbols,
		"scan_interval", p.cfg.ScanInterval.String(),
		"queue_capacity", p.cfg.QueueCapacity)
	return nil
}

// Stop halts scanning and waits for the opportunity in progress to finish.
func (p *Pipeline) Stop() error {
	p.runMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.runMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	p.wg.Wait()

	if p.deps.Reporter != nil {
		return p.deps.Reporter.Stop()
	}
	return nil
}

// OnBreakerEvent counts and reports loss breaker events. It is registered
// as the breaker listener.
func (p *Pipeline) OnBreakerEvent(event riskApp.BreakerEvent, cumulative decimal.Decimal) {
	ctx := context.Background()
	p.metrics.breakerEvent(ctx, event)
	p.log.Warn(ctx, "circuit breaker event", "event", string(event), "cumulative_pnl", cumulative.StringFixed(4))
	if p.deps.Reporter != nil {
		p.deps.Reporter.BreakerEvent(event, cumulative)
	}
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() domain.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats.Clone()
	s.QueueLen = p.queue.Len()
	return s
}

func (p *Pipeline) scanLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ScanInterval)
	defer ticker.Stop()

	p.Scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Scan(ctx)
		}
	}
}

func (p *Pipeline) processLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case opp := <-p.queue.C():
			// a stop can race a ready item; only work already in progress finishes
			if ctx.Err() != nil {
				p.release(opp.Key())
				return
			}
			p.Process(context.WithoutCancel(ctx), opp)
		}
	}
}

// Scan runs one collect, detect and publish cycle.
func (p *Pipeline) Scan(ctx context.Context) domain.ScanSummary {
	started := p.now()

	snap, errs := p.deps.Collector.Collect(ctx, p.cfg.Venues, p.cfg.Symbols, p.cfg.FetchTimeout)
	if snap == nil {
		snap = mdDomain.NewSnapshot(started)
	}
	for _, e := range errs {
		p.log.Debug(ctx, "collection error", "venue", e.Venue, "symbol", e.Symbol, "error", e.Cause)
	}

	opps := p.deps.Detector.Detect(ctx, snap, p.cfg.Detection)

	summary := domain.ScanSummary{
		At:       started,
		Points:   snap.Len(),
		Errors:   len(errs),
		Detected: len(opps),
	}
	if len(opps) > 0 {
		p.metrics.detected.Add(ctx, int64(len(opps)))
	}

	for _, opp := range opps {
		if !p.claim(opp.Key()) {
			summary.Duplicates++
			continue
		}

		p.report(opp)
		if dropped := p.queue.Publish(opp); dropped != nil {
			p.drop(ctx, dropped)
			summary.Dropped++
		}
		summary.Enqueued++
	}

	summary.Duration = p.now().Sub(started)
	p.metrics.scanMs.Record(ctx, float64(summary.Duration.Microseconds())/1000)

	p.mu.Lock()
	p.stats.Scans++
	p.stats.Detected += int64(summary.Detected)
	p.stats.Enqueued += int64(summary.Enqueued)
	p.stats.Duplicates += int64(summary.Duplicates)
	p.stats.Dropped += int64(summary.Dropped)
	p.stats.LastScan = summary
	p.mu.Unlock()

	if r := p.deps.Reporter; r != nil {
		for _, venue := range p.cfg.Venues {
			r.UpdateConnectionStatus(venue, p.deps.Collector.IsConnected(venue), summary.Duration)
		}
		r.UpdateScan(summary, p.Stats())
	}

	if summary.Detected > 0 || summary.Errors > 0 {
		p.log.Info(ctx, "scan completed",
			"points", summary.Points,
			"errors", summary.Errors,
			"detected", summary.Detected,
			"enqueued", summary.Enqueued,
			"dropped", summary.Dropped,
			"duration_ms", summary.Duration.Milliseconds())
	}
	return summary
}

// Process drives one opportunity to a terminal state.
func (p *Pipeline) Process(ctx context.Context, opp *arbDomain.Opportunity) {
	defer p.release(opp.Key())

	if p.expireIfDue(ctx, opp) {
		return
	}
	p.transition(ctx, opp, arbDomain.StatusAnalyzing)

	assessment := p.deps.Gate.Assess(ctx, opp)
	if !assessment.Approved {
		p.reject(ctx, opp, assessment.Blockers...)
		return
	}
	if p.expireIfDue(ctx, opp) {
		return
	}

	if p.deps.Locker != nil {
		unlock, err := p.deps.Locker.Acquire(ctx, opp.Key().String(), p.cfg.LockTTL)
		if err != nil {
			reason := ReasonLockFailed
			if apperror.GetCode(err) == apperror.CodeLockHeld {
				reason = ReasonLockHeld
			}
			p.reject(ctx, opp, arbDomain.Blocker{Reason: reason, Message: err.Error()})
			return
		}
		defer unlock()
	}

	p.transition(ctx, opp, arbDomain.StatusApproved)
	p.count(func(s *domain.Stats) { s.Approved++ })

	capital, err := p.deps.Gate.Size(ctx, opp)
	if err != nil || !capital.IsPositive() {
		msg := "position size is zero"
		if err != nil {
			msg = err.Error()
		}
		p.reject(ctx, opp, arbDomain.Blocker{Reason: ReasonZeroSize, Message: msg})
		return
	}

	p.transition(ctx, opp, arbDomain.StatusExecuting)

	pnl, err := p.deps.Executor.Execute(ctx, opp, capital)
	opp.RealizedPnL = pnl
	if err != nil {
		p.transition(ctx, opp, arbDomain.StatusFailed)
		p.metrics.failed.Add(ctx, 1)
		p.count(func(s *domain.Stats) {
			s.Failed++
			s.RealizedPnL = s.RealizedPnL.Add(pnl)
		})
		p.log.Warn(ctx, "execution failed", "id", opp.ID, "key", opp.Key().String(), "error", err)
	} else {
		p.transition(ctx, opp, arbDomain.StatusCompleted)
		p.metrics.completed.Add(ctx, 1)
		p.count(func(s *domain.Stats) {
			s.Completed++
			s.RealizedPnL = s.RealizedPnL.Add(pnl)
		})
		p.log.Info(ctx, "opportunity completed",
			"id", opp.ID, "key", opp.Key().String(),
			"capital", capital.StringFixed(2), "pnl", pnl.StringFixed(4))
	}

	p.deps.Gate.RecordTradeResult(ctx, pnl)
}

func (p *Pipeline) expireIfDue(ctx context.Context, opp *arbDomain.Opportunity) bool {
	if !opp.IsExpired(p.now()) {
		return false
	}
	p.transition(ctx, opp, arbDomain.StatusExpired)
	p.metrics.expired.Add(ctx, 1)
	p.count(func(s *domain.Stats) { s.Expired++ })
	return true
}

// drop retires an opportunity evicted from a full queue. It is moved to
// expired so displays holding it reach a terminal state.
func (p *Pipeline) drop(ctx context.Context, opp *arbDomain.Opportunity) {
	p.release(opp.Key())
	p.metrics.dropped.Add(ctx, 1)
	p.log.Debug(ctx, "queue full, dropped oldest opportunity", "id", opp.ID, "key", opp.Key().String())
	p.transition(ctx, opp, arbDomain.StatusExpired)
}

func (p *Pipeline) reject(ctx context.Context, opp *arbDomain.Opportunity, blockers ...arbDomain.Blocker) {
	if err := opp.Reject(blockers, p.now()); err != nil {
		p.log.Error(ctx, "invalid status transition", "id", opp.ID, "error", err)
		return
	}
	for _, b := range blockers {
		p.metrics.reject(ctx, b.Reason)
	}
	p.count(func(s *domain.Stats) {
		s.Rejected++
		for _, b := range blockers {
			s.RejectReasons[b.Reason]++
		}
	})
	p.log.Debug(ctx, "opportunity rejected", "id", opp.ID, "key", opp.Key().String(), "blockers", len(blockers))
	p.report(opp)
}

func (p *Pipeline) transition(ctx context.Context, opp *arbDomain.Opportunity, next arbDomain.Status) {
	if err := opp.Transition(next, p.now()); err != nil {
		p.log.Error(ctx, "invalid status transition", "id", opp.ID, "error", err)
		return
	}
	p.report(opp)
}

// report hands the reporter a copy so it never races the processor.
func (p *Pipeline) report(opp *arbDomain.Opportunity) {
	if p.deps.Reporter == nil {
		return
	}
	c := *opp
	c.Blockers = append([]arbDomain.Blocker(nil), opp.Blockers...)
	p.deps.Reporter.Report(&c)
}

func (p *Pipeline) count(fn func(s *domain.Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

// claim marks key in flight. It returns false when it already is.
func (p *Pipeline) claim(key arbDomain.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[key]; ok {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key arbDomain.Key) {
	p.mu.Lock()
	delete(p.inFlight, key)
	p.mu.Unlock()
}

// inFlightLen returns the number of keys queued or being processed.
func (p *Pipeline) inFlightLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}
