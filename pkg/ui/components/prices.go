// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow represents a row in the price table.
type PriceRow struct {
	Token    string
	Network  string
	PriceUSD decimal.Decimal
	Source   string
	Block    uint64
	// ChangeBps is the move against the previous refresh.
	ChangeBps decimal.Decimal
	Err       string
}

func (r PriceRow) key() string { return r.Network + "/" + r.Token }

// PricesComponent renders the tracked token prices.
type PricesComponent struct {
	rows map[string]PriceRow
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{rows: make(map[string]PriceRow)}
}

// Set stores row, computing its change against the last good price. A
// failed refresh keeps the last known price.
func (p *PricesComponent) Set(row PriceRow) {
	prev, seen := p.rows[row.key()]
	if row.Err != "" {
		if seen {
			prev.Err = row.Err
			prev.Block = row.Block
			p.rows[row.key()] = prev
			return
		}
		p.rows[row.key()] = row
		return
	}
	if seen && prev.PriceUSD.IsPositive() {
		row.ChangeBps = row.PriceUSD.Sub(prev.PriceUSD).Div(prev.PriceUSD).Mul(decimal.NewFromInt(10000))
	}
	p.rows[row.key()] = row
}

// Rows returns the rows sorted by network then token.
func (p *PricesComponent) Rows() []PriceRow {
	rows := make([]PriceRow, 0, len(p.rows))
	for _, r := range p.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key() < rows[j].key() })
	return rows
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	if len(p.rows) == 0 {
		return headerStyle.Render("PRICES") + "\n\nWaiting for price data..."
	}

	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("PRICES (USD)"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %-10s  %-10s  %14s  %10s  %-10s\n", "Token", "Network", "Price", "Change", "Source"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 62)) + "\n")

	for _, row := range p.Rows() {
		price := "-"
		if !row.PriceUSD.IsZero() {
			price = "$" + row.PriceUSD.StringFixed(4)
		}

		changeStyle := dimStyle
		switch {
		case row.ChangeBps.IsPositive():
			changeStyle = positiveStyle
		case row.ChangeBps.IsNegative():
			changeStyle = negativeStyle
		}
		change := fmt.Sprintf("%+.1f bps", row.ChangeBps.InexactFloat64())

		b.WriteString(fmt.Sprintf("  %-10s  %-10s  %14s  %s  %-10s",
			row.Token, row.Network, price,
			changeStyle.Render(fmt.Sprintf("%10s", change)),
			row.Source,
		))
		if row.Err != "" {
			b.WriteString(" " + warnStyle.Render("⚠ "+row.Err))
		}
		b.WriteString("\n")
	}

	return b.String()
}
