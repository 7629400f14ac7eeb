package ui

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	pipelineDomain "github.com/fd1az/spatial-arb/business/pipeline/domain"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func dashboard(t *testing.T, controls Controls) Model {
	t.Helper()
	m := New(controls, []string{"sim-a", "sim-b"})
	m, _ = update(t, m, WelcomeCompleteMsg{})
	m, _ = update(t, m, ScanMsg{Stats: pipelineDomain.Stats{Scans: 1}})
	if m.Phase() != PhaseDashboard {
		t.Fatalf("phase = %s, want dashboard", m.Phase())
	}
	return m
}

func TestModel_PhasesAndStartCallback(t *testing.T) {
	started := make(chan struct{}, 1)
	m := New(Controls{OnStart: func() { started <- struct{}{} }}, []string{"sim-a"})

	if m.Phase() != PhaseWelcome {
		t.Fatalf("phase = %s", m.Phase())
	}

	m, _ = update(t, m, keyMsg("z"))
	if m.Phase() != PhaseStartup {
		t.Fatalf("phase = %s after key, want startup", m.Phase())
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("OnStart was not called")
	}

	// leaving welcome twice must not start twice
	m, _ = update(t, m, WelcomeCompleteMsg{})
	select {
	case <-started:
		t.Fatal("OnStart called twice")
	case <-time.After(50 * time.Millisecond):
	}

	m, _ = update(t, m, ScanMsg{})
	if m.Phase() != PhaseDashboard {
		t.Errorf("phase = %s after first scan", m.Phase())
	}
}

func TestModel_QuitInAnyPhase(t *testing.T) {
	m := New(Controls{}, nil)
	m, cmd := update(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command should produce tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "Goodbye") {
		t.Error("quitting view")
	}
}

func TestModel_EmergencyStopKey(t *testing.T) {
	var on atomic.Bool
	m := dashboard(t, Controls{ToggleEmergencyStop: func() bool {
		v := !on.Load()
		on.Store(v)
		return v
	}})

	m, cmd := update(t, m, keyMsg("s"))
	if cmd == nil {
		t.Fatal("toggle should return a command")
	}
	msg := cmd()
	stop, ok := msg.(EmergencyStopMsg)
	if !ok || !stop.On {
		t.Fatalf("cmd() = %#v, want EmergencyStopMsg{On: true}", msg)
	}

	m, _ = update(t, m, msg)
	if !m.risk.State().EmergencyStop {
		t.Error("risk panel should show the emergency stop")
	}
	if !strings.Contains(m.View(), "EMERGENCY STOP") {
		t.Error("status bar should flag the emergency stop")
	}
}

func TestModel_ResetBreakerKey(t *testing.T) {
	var resets atomic.Int32
	m := dashboard(t, Controls{ResetBreaker: func() { resets.Add(1) }})

	_, cmd := update(t, m, keyMsg("r"))
	if cmd == nil {
		t.Fatal("reset should return a command")
	}
	cmd()
	if resets.Load() != 1 {
		t.Errorf("resets = %d, want 1", resets.Load())
	}
}

func TestModel_ControlKeysWithoutControls(t *testing.T) {
	m := dashboard(t, Controls{})
	for _, k := range []string{"s", "r"} {
		if _, cmd := update(t, m, keyMsg(k)); cmd != nil {
			t.Errorf("key %q without a control should be ignored", k)
		}
	}
}

func TestModel_OpportunityUpdatesAndPause(t *testing.T) {
	m := dashboard(t, Controls{})
	opp := &arbDomain.Opportunity{
		ID:            "opp-1",
		Symbol:        "BTC/USDT",
		BuyVenue:      "sim-a",
		SellVenue:     "sim-b",
		SpreadPercent: decimal.RequireFromString("1.2"),
		NetProfit:     decimal.RequireFromString("3"),
		Status:        arbDomain.StatusDetected,
		DetectedAt:    time.Now(),
	}

	m, _ = update(t, m, OpportunityMsg{Opportunity: opp})
	done := *opp
	done.Status = arbDomain.StatusCompleted
	m, _ = update(t, m, OpportunityMsg{Opportunity: &done})

	rows := m.opportunities.Rows()
	if len(rows) != 1 || rows[0].Status != "completed" {
		t.Fatalf("rows = %+v, want one completed row", rows)
	}

	m, _ = update(t, m, keyMsg("p"))
	other := *opp
	other.ID = "opp-2"
	m, _ = update(t, m, OpportunityMsg{Opportunity: &other})
	if len(m.opportunities.Rows()) != 1 {
		t.Error("paused list should not change")
	}

	m, _ = update(t, m, keyMsg("c"))
	if len(m.opportunities.Rows()) != 0 {
		t.Error("clear should empty the list")
	}
}

func TestModel_BreakerAndErrors(t *testing.T) {
	m := dashboard(t, Controls{})

	m, _ = update(t, m, BreakerMsg{Event: "triggered", Cumulative: decimal.NewFromInt(-120)})
	if !m.risk.State().BreakerTriggered {
		t.Error("breaker should be shown as tripped")
	}

	for i := 0; i < 5; i++ {
		m, _ = update(t, m, ErrorMsg{Error: errors.New("venue timeout")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors kept = %d, want 3", len(m.errors))
	}
	m, _ = update(t, m, keyMsg("x"))
	if len(m.errors) != 0 {
		t.Error("x should clear errors")
	}
}

func TestModel_ConnectionStatus(t *testing.T) {
	m := dashboard(t, Controls{})
	m, _ = update(t, m, ConnectionStatusMsg{Name: "sim-a", Connected: true, Latency: 5 * time.Millisecond})

	if c, ok := m.status.Get("sim-a"); !ok || !c.Connected {
		t.Errorf("sim-a = %+v", c)
	}
	if up, total := m.status.Connected(); up != 1 || total != 2 {
		t.Errorf("Connected() = %d/%d", up, total)
	}
}
