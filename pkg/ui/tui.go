// Package ui provides the Bubble Tea TUI for the arbitrage pipeline.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
	"github.com/fd1az/spatial-arb/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Waiting for the first scan
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Controls are the operator actions the dashboard can trigger. Nil funcs
// disable the matching key.
type Controls struct {
	// OnStart runs once, in its own goroutine, when the welcome screen ends.
	OnStart             func()
	ToggleEmergencyStop func() bool
	ResetBreaker        func()

	// EmergencyStop is the flag value at startup.
	EmergencyStop bool
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	opportunities *components.OpportunitiesComponent
	stats         *components.StatsComponent
	status        *components.StatusComponent
	risk          *components.RiskComponent

	keys     KeyMap
	help     help.Model
	controls Controls

	// Phase state
	phase        Phase
	welcomeStart time.Time
	startupTime  time.Time

	// State
	ready        bool
	quitting     bool
	paused       bool // freezes the opportunity list
	width        int
	height       int
	lastUpdate   time.Time
	lastScanTime time.Time
	errors       []ErrorEntry // last 3
	logs         []string     // last 5
	activityFeed []string     // last 6
}

// New creates a new TUI model for the given venues.
func New(controls Controls, venues []string) Model {
	now := time.Now()
	return Model{
		opportunities: components.NewOpportunitiesComponent(50, 12),
		stats:         components.NewStatsComponent(),
		status:        components.NewStatusComponent(venues...),
		risk:          components.NewRiskComponent(controls.EmergencyStop),
		keys:          DefaultKeyMap(),
		help:          help.New(),
		controls:      controls,
		phase:         PhaseWelcome,
		welcomeStart:  now,
		startupTime:   now,
		errors:        make([]ErrorEntry, 0, 3),
		logs:          make([]string, 0, 5),
		activityFeed:  make([]string, 0, 6),
	}
}

// Phase returns the current UI phase.
func (m Model) Phase() Phase {
	return m.phase
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// leaveWelcome moves to the startup phase and starts the pipeline.
func (m Model) leaveWelcome() Model {
	if m.phase != PhaseWelcome {
		return m
	}
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Send() must not be called from inside Update, so the callback gets its
	// own goroutine.
	if m.controls.OnStart != nil {
		go m.controls.OnStart()
	}
	return m
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m = m.leaveWelcome()
		}
		return m, tickCmd()

	case WelcomeCompleteMsg:
		m = m.leaveWelcome()

	case OpportunityMsg:
		if msg.Opportunity == nil || m.paused {
			return m, nil
		}
		m.opportunities.Add(opportunityRow(msg.Opportunity))
		m.lastUpdate = time.Now()

	case ScanMsg:
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}
		s := msg.Stats
		m.stats.Update(components.Stats{
			Scans:         s.Scans,
			Detected:      s.Detected,
			Enqueued:      s.Enqueued,
			Dropped:       s.Dropped,
			Expired:       s.Expired,
			Approved:      s.Approved,
			Rejected:      s.Rejected,
			Completed:     s.Completed,
			Failed:        s.Failed,
			RealizedPnL:   s.RealizedPnL,
			QueueLen:      s.QueueLen,
			LastScan:      msg.Summary.Duration,
			ScanErrors:    msg.Summary.Errors,
			RejectReasons: s.RejectReasons,
		})
		activity := fmt.Sprintf("scan: %d points, %d detected, %d queued", msg.Summary.Points, msg.Summary.Detected, msg.Summary.Enqueued)
		if msg.Summary.Dropped > 0 {
			activity += fmt.Sprintf(", %d dropped", msg.Summary.Dropped)
		}
		m.activityFeed = addActivity(m.activityFeed, activity)
		m.lastScanTime = time.Now()
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		prev, known := m.status.Get(msg.Name)
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		if known && prev.Connected != msg.Connected {
			state := "down"
			if msg.Connected {
				state = "up"
			}
			m.activityFeed = addActivity(m.activityFeed, fmt.Sprintf("venue %s is %s", msg.Name, state))
		}
		m.lastUpdate = time.Now()

	case BreakerMsg:
		at := msg.At
		if at.IsZero() {
			at = time.Now()
		}
		m.risk.SetBreaker(msg.Event, msg.Cumulative, at)
		m.activityFeed = addActivity(m.activityFeed,
			fmt.Sprintf("circuit breaker %s (P&L %s)", msg.Event, msg.Cumulative.StringFixed(2)))

	case EmergencyStopMsg:
		m.risk.SetEmergencyStop(msg.On)
		state := "cleared"
		if msg.On {
			state = "engaged"
		}
		m.logs = addLog(m.logs, "warn", "emergency stop "+state)

	case ErrorMsg:
		if msg.Error == nil {
			return m, nil
		}
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Always allow quit
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	// During welcome phase, any other key skips to startup
	if m.phase == PhaseWelcome {
		return m.leaveWelcome(), tickCmd()
	}

	switch {
	case key.Matches(msg, m.keys.Clear):
		m.opportunities.Clear()
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.Up):
		m.opportunities.ScrollUp()
	case key.Matches(msg, m.keys.Down):
		m.opportunities.ScrollDown()
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = m.errors[:0]
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.EmergencyStop):
		toggle := m.controls.ToggleEmergencyStop
		if toggle == nil {
			return m, nil
		}
		return m, func() tea.Msg { return EmergencyStopMsg{On: toggle()} }
	case key.Matches(msg, m.keys.ResetBreaker):
		reset := m.controls.ResetBreaker
		if reset == nil {
			return m, nil
		}
		return m, func() tea.Msg {
			reset()
			return LogMsg{Level: "info", Message: "circuit breaker reset by operator"}
		}
	}
	return m, nil
}

func opportunityRow(opp *arbDomain.Opportunity) components.OpportunityRow {
	return components.OpportunityRow{
		ID:         opp.ID,
		Time:       opp.DetectedAt.Format("15:04:05"),
		Symbol:     opp.Symbol,
		Route:      opp.BuyVenue + " → " + opp.SellVenue,
		SpreadPct:  opp.SpreadPercent,
		NetProfit:  opp.NetProfit,
		Confidence: opp.Confidence,
		Status:     string(opp.Status),
	}
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Spatial Arbitrage Pipeline "))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	// Left: venues, risk and activity. Right: stats and opportunities.
	var left strings.Builder
	left.WriteString(m.status.View())
	left.WriteString("\n")
	left.WriteString(m.risk.View())
	left.WriteString("\n")
	left.WriteString(m.renderActivityFeed())

	var right strings.Builder
	right.WriteString(m.stats.View())
	right.WriteString("\n")
	right.WriteString(m.opportunities.View())

	if m.width > 140 {
		l := BoxStyle.Width(m.width/3 - 2).Render(left.String())
		r := BoxStyle.Width(m.width*2/3 - 2).Render(right.String())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, l, r))
	} else {
		w := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(w).Render(left.String()))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(w).Render(right.String()))
	}
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (x: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		for _, l := range m.logs {
			b.WriteString(MutedValue.Render("  " + l))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderActivityFeed renders the recent activity feed.
func (m Model) renderActivityFeed() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for the first scan..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		sb.WriteString(MutedValue.Render("  " + activity))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ███████╗██████╗  █████╗ ████████╗██╗ █████╗ ██╗
   ██╔════╝██╔══██╗██╔══██╗╚══██╔══╝██║██╔══██╗██║
   ███████╗██████╔╝███████║   ██║   ██║███████║██║
   ╚════██║██╔═══╝ ██╔══██║   ██║   ██║██╔══██║██║
   ███████║██║     ██║  ██║   ██║   ██║██║  ██║███████╗
   ╚══════╝╚═╝     ╚═╝  ╚═╝   ╚═╝   ╚═╝╚═╝  ╚═╝╚══════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("          C R O S S - V E N U E   A R B I T R A G E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders venue connection progress until the first scan.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  Spatial Arbitrage Pipeline"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")
	sb.WriteString(m.status.View())
	sb.WriteString("\n")

	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for the first market scan..."))
	sb.WriteString("\n")

	if len(m.errors) > 0 {
		sb.WriteString("\n")
		sb.WriteString(StatusDisconnected.Render("  " + m.errors[len(m.errors)-1].Message))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	if time.Since(m.lastScanTime) < 500*time.Millisecond {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		scanningStyle := lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
		parts = append(parts, scanningStyle.Render(spinners[idx]+" Scanning"))
	}

	up, total := m.status.Connected()
	venueStyle := StatusConnected
	if up < total {
		venueStyle = StatusReconnecting
	}
	if up < 2 {
		venueStyle = StatusDisconnected
	}
	parts = append(parts, venueStyle.Render(fmt.Sprintf("Venues: %d/%d", up, total)))

	if st := m.stats.Stats(); st.Scans > 0 {
		parts = append(parts, PositiveValue.Render(fmt.Sprintf("Scans: %d", st.Scans)))
	}

	rs := m.risk.State()
	if rs.BreakerTriggered {
		parts = append(parts, StatusDisconnected.Render("BREAKER TRIPPED"))
	}
	if rs.EmergencyStop {
		parts = append(parts, StatusDisconnected.Render("EMERGENCY STOP"))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// NewProgram creates the Bubble Tea program and stores it in Program.
func NewProgram(controls Controls, venues []string) *tea.Program {
	Program = tea.NewProgram(New(controls, venues), tea.WithAltScreen())
	return Program
}

// Send sends a message to the running program. It is a no-op before
// NewProgram.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
