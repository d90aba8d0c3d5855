package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ShareCodeView renders the code box shown to the sender while it waits
// for the peer to join.
func ShareCodeView(code string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Share Ready!\n\n%s Code:  %s\n\nRun %s on the other machine.",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(code),
		BoldStyle.Render("ruff-web receive "+code),
	)

	return boxStyle.Render(content)
}

// RenderShareCode outputs the share-code box directly to stdout
func RenderShareCode(code string) {
	fmt.Println(ShareCodeView(code))
}

type SessionSummary struct {
	Status   string
	Code     string
	StashID  string
	Size     string
	Duration string
}

func SessionSummaryView(summary SessionSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Status", summary.Status},
		{"Code", summary.Code},
		{"Stash", summary.StashID},
		{"Size", summary.Size},
		{"Duration", summary.Duration},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderSessionSummary(summary SessionSummary) {
	fmt.Println(SessionSummaryView(summary))
}

// FormatSize renders a byte count in human units.
func FormatSize(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
