package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Stats are the dashboard counters.
type Stats struct {
	BlocksProcessed int64
	Events          int64
	PriceRefreshes  int64
	PriceFailures   int64
	AvgLatencyMs    float64
	Errors          int64
}

// PriceSuccessRate is the share of price refreshes that produced a price, in percent.
func (s Stats) PriceSuccessRate() float64 {
	if s.PriceRefreshes == 0 {
		return 0
	}
	return float64(s.PriceRefreshes-s.PriceFailures) / float64(s.PriceRefreshes) * 100
}

type StatsComponent struct {
	stats Stats
}

func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Apply mutates the counters in place.
func (s *StatsComponent) Apply(fn func(*Stats)) {
	fn(&s.stats)
}

// Snapshot returns a copy of the counters.
func (s *StatsComponent) Snapshot() Stats { return s.stats }

func (s *StatsComponent) View() string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#71717A"))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("#F8FAFC")).Bold(true)
	bad := lipgloss.NewStyle().Foreground(lipgloss.Color("#F43F5E")).Bold(true)

	cell := func(name, v string, style lipgloss.Style) string {
		return label.Render(name+" ") + style.Render(v)
	}

	errStyle := value
	if s.stats.Errors > 0 {
		errStyle = bad
	}

	row1 := []string{
		cell("blocks", fmt.Sprint(s.stats.BlocksProcessed), value),
		cell("events", fmt.Sprint(s.stats.Events), value),
		cell("prices", fmt.Sprintf("%d (%.1f%% ok)", s.stats.PriceRefreshes, s.stats.PriceSuccessRate()), value),
	}
	row2 := []string{
		cell("head latency", fmt.Sprintf("%.0fms", s.stats.AvgLatencyMs), value),
		cell("errors", fmt.Sprint(s.stats.Errors), errStyle),
	}

	return label.Render("STATS") + "\n" +
		strings.Join(row1, "  │  ") + "\n" +
		strings.Join(row2, "  │  ")
}
