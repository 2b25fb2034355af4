package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/fd1az/chainkit/pkg/ui/components"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

const (
	maxErrors   = 3
	maxLogs     = 5
	maxActivity = 6
)

var stepOrder = []string{"config", "ethereum", "contracts", "pricing"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys KeyMap
	help help.Model

	// Components
	prices *components.PricesComponent
	events *components.EventsComponent
	status *components.StatusComponent
	stats  *components.StatsComponent

	// Phase state
	phase          Phase
	welcomeStart   time.Time
	modulesStarted bool

	// State
	quitting     bool
	paused       bool // drops incoming events while set
	showLogs     bool
	showStats    bool
	width        int
	height       int
	currentBlock uint64
	gas          map[string]decimal.Decimal
	lastUpdate   time.Time
	errors       []ErrorEntry
	logs         []string
	activityFeed []string
	latencyTotal time.Duration
	latencyCount int64

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	return Model{
		keys:         DefaultKeyMap(),
		help:         help.New(),
		prices:       components.NewPricesComponent(),
		events:       components.NewEventsComponent(100, 12),
		status:       components.NewStatusComponent(),
		stats:        components.NewStatsComponent(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		gas:          make(map[string]decimal.Decimal),
		startupSteps: map[string]*StartupStep{
			"config":    {Name: "Loading configuration", Status: "pending"},
			"ethereum":  {Name: "Connecting to node", Status: "pending"},
			"contracts": {Name: "Binding contracts", Status: "pending"},
			"pricing":   {Name: "Initializing price oracle", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// startModules leaves the welcome screen and fires OnStartModules once.
func (m Model) startModules() Model {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	if !m.modulesStarted {
		m.modulesStarted = true
		// Update must not block on Send, so the callback runs detached.
		if OnStartModules != nil {
			go OnStartModules()
		}
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

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m = m.startModules()
		}
		return m, tickCmd()

	case StartModulesMsg:
		if m.phase == PhaseWelcome {
			m = m.startModules()
		}

	case EventMsg:
		if m.paused {
			return m, nil
		}
		m.events.Add(components.EventRow{
			Timestamp:   msg.ReceivedAt.Format("15:04:05"),
			BlockNumber: msg.BlockNumber,
			Contract:    msg.Contract,
			Name:        msg.Name,
			Summary:     msg.Summary,
			Removed:     msg.Removed,
		})
		m.bumpStats(func(s *components.Stats) { s.Events++ })
		m.lastUpdate = time.Now()

	case PriceMsg:
		row := components.PriceRow{
			Token:    msg.Token,
			Network:  msg.Network,
			PriceUSD: msg.PriceUSD,
			Source:   msg.Source,
			Block:    msg.Block,
		}
		if msg.Err != nil {
			row.Err = msg.Err.Error()
		}
		m.prices.Set(row)
		m.bumpStats(func(s *components.Stats) {
			s.PriceRefreshes++
			if msg.Err != nil {
				s.PriceFailures++
			}
		})
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastBlock:  m.currentBlock,
			LastUpdate: time.Now(),
		})
		if msg.Latency > 0 {
			m.latencyTotal += msg.Latency
			m.latencyCount++
			avg := float64(m.latencyTotal.Milliseconds()) / float64(m.latencyCount)
			m.bumpStats(func(s *components.Stats) { s.AvgLatencyMs = avg })
		}
		if step := m.startupSteps["ethereum"]; step != nil {
			if msg.Connected {
				step.Status = "connected"
			} else if step.Status != "failed" {
				step.Status = "connecting"
			}
		}
		m.lastUpdate = time.Now()

	case BlockMsg:
		m.currentBlock = msg.Number
		m.bumpStats(func(s *components.Stats) { s.BlocksProcessed++ })
		m.activityFeed = appendBounded(m.activityFeed, stamp(fmt.Sprintf("Block #%d on %s", msg.Number, msg.Network)), maxActivity)
		m.lastUpdate = time.Now()
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}

	case GasPriceMsg:
		m.gas[msg.Network] = msg.Gwei

	case ErrorMsg:
		if msg.Error == nil {
			return m, nil
		}
		m.logs = appendBounded(m.logs, stamp("error: "+msg.Error.Error()), maxLogs)
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > maxErrors {
			m.errors = m.errors[len(m.errors)-maxErrors:]
		}
		m.bumpStats(func(s *components.Stats) { s.Errors++ })

	case LogMsg:
		m.logs = appendBounded(m.logs, stamp(msg.Level+": "+msg.Message), maxLogs)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Message != "" {
			m.logs = appendBounded(m.logs, stamp(msg.Step+": "+msg.Message), maxLogs)
		}
		if m.phase == PhaseStartup && m.startupComplete() {
			m.phase = PhaseDashboard
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	// any other key skips the welcome screen
	if m.phase == PhaseWelcome {
		return m.startModules(), tickCmd()
	}

	switch {
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.Clear):
		m.events.Clear()
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = nil
	case key.Matches(msg, m.keys.Up):
		m.events.ScrollUp()
	case key.Matches(msg, m.keys.Down):
		m.events.ScrollDown()
	case key.Matches(msg, m.keys.Logs):
		m.showLogs = !m.showLogs
	case key.Matches(msg, m.keys.Metrics):
		m.showStats = !m.showStats
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) bumpStats(fn func(*components.Stats)) {
	m.stats.Apply(fn)
}

func (m Model) startupComplete() bool {
	for _, step := range m.startupSteps {
		if step.Status != "connected" && step.Status != "done" {
			return false
		}
	}
	return true
}

func stamp(message string) string {
	return fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message)
}

// appendBounded appends line and keeps the last n entries.
func appendBounded(lines []string, line string, n int) []string {
	lines = append(lines, line)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
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

	b.WriteString(TitleStyle.Render(" ⛓ chainkit watch "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.prices.View()

	var right strings.Builder
	right.WriteString(m.renderActivityFeed())
	right.WriteString("\n\n")
	right.WriteString(m.events.View())
	rightCol := right.String()

	if m.width > 100 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		r := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, r))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")

	if m.showStats {
		b.WriteString(m.stats.View())
		b.WriteString("\n\n")
	}

	if m.showLogs && len(m.logs) > 0 {
		b.WriteString(HeaderStyle.Render("LOGS"))
		b.WriteString("\n")
		for _, line := range m.logs {
			b.WriteString(MutedValue.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		b.WriteString(ErrorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorText.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedBadge.Render("PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for blocks..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		sb.WriteString(BlockStyle.Render("  " + activity))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderWelcomeScreen() string {
	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██████╗██╗  ██╗ █████╗ ██╗███╗   ██╗██╗  ██╗██╗████████╗
   ██╔════╝██║  ██║██╔══██╗██║████╗  ██║██║ ██╔╝██║╚══██╔══╝
   ██║     ███████║███████║██║██╔██╗ ██║█████╔╝ ██║   ██║
   ██║     ██╔══██║██╔══██║██║██║╚██╗██║██╔═██╗ ██║   ██║
   ╚██████╗██║  ██║██║  ██║██║██║ ╚████║██║  ██╗██║   ██║
    ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝   ╚═╝
`
	sb.WriteString(LogoStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("              C O N T R A C T S  •  E V E N T S  •  P R I C E S"))
	sb.WriteString("\n\n\n")
	sb.WriteString(OKValue.Render(fmt.Sprintf("                     Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("               Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStartupScreen() string {
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(LogoStyle.Render("  ⛓ chainkit watch"))
	sb.WriteString("\n\n")
	sb.WriteString(StepHeader.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range stepOrder {
		step := m.startupSteps[k]

		var icon, statusText string
		var style lipgloss.Style
		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", OKValue
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", PendingText
		case "failed":
			icon, statusText, style = "✗", "Failed", ErrorText
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n", style.Render(icon), MutedValue.Render(step.Name), style.Render(statusText)))
	}

	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startupTime).Round(time.Second))))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for first block..."))
	sb.WriteString("\n")

	if len(m.errors) > 0 {
		sb.WriteString("\n")
		sb.WriteString(ErrorText.Render("  " + m.errors[len(m.errors)-1].Message))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{fmt.Sprintf("Block: #%d", m.currentBlock)}

	networks := make([]string, 0, len(m.gas))
	for n := range m.gas {
		networks = append(networks, n)
	}
	sort.Strings(networks)
	for _, n := range networks {
		parts = append(parts, fmt.Sprintf("Gas %s: %s gwei", n, m.gas[n].StringFixed(1)))
	}

	parts = append(parts, m.status.View())

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

// OnStartModules is called once when the welcome screen completes and
// modules should start loading.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
