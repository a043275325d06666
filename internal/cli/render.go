package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/spice-quest/internal/model"
)

// ProgressBar renders pct (0..100) as a fixed-width text bar.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		width = 20
	}
	pct = math.Max(0, math.Min(100, pct))
	filled := int(math.Round(pct / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RenderSummary renders the user's indicators against their targets.
func RenderSummary(summary model.FinancialSummary, profile *model.Profile) string {
	rdrSeverity := model.RDRSeverity(summary.RDR)

	lines := []string{
		indicatorLine("Savings rate (TPS)", summary.TPS.StringFixed(2)+"%",
			"≥ "+profile.TargetTPS.String()+"%", summary.TPS.GreaterThanOrEqual(profile.TargetTPS)),
		indicatorLine("Debt service (RDR)", summary.RDR.StringFixed(2)+"%",
			"≤ "+profile.TargetRDR.String()+"%", summary.RDR.LessThanOrEqual(profile.TargetRDR)) +
			"  " + SeverityStyle(rdrSeverity).Render(string(rdrSeverity)),
		indicatorLine("Liquidity (ILI)", summary.ILI.StringFixed(1)+" months",
			"≥ "+profile.TargetILI.String(), summary.ILI.GreaterThanOrEqual(profile.TargetILI)),
		"",
		SubtleStyle.Render(fmt.Sprintf("Income %s · Expenses %s · Debt service %s",
			summary.TotalIncome.StringFixed(2),
			summary.TotalExpense.StringFixed(2),
			summary.TotalDebt.StringFixed(2))),
	}
	return RenderBox(ChartIcon+" Financial health", strings.Join(lines, "\n"))
}

func indicatorLine(label, value, target string, met bool) string {
	mark := ErrorStyle.Render(ErrorIcon)
	if met {
		mark = SuccessStyle.Render(SuccessIcon)
	}
	return fmt.Sprintf("%s %-20s %s %s", mark, label, BoldStyle.Render(fmt.Sprintf("%-14s", value)),
		SubtleStyle.Render("target "+target))
}

// RenderLevel renders the profile's level and XP towards the next level.
func RenderLevel(profile *model.Profile, threshold int) string {
	pct := 0.0
	if threshold > 0 {
		pct = float64(profile.XP) / float64(threshold) * 100
	}
	return fmt.Sprintf("%s Level %d  %s  %d/%d XP",
		StarIcon, profile.Level, ProgressBar(pct, 20), profile.XP, threshold)
}

// RenderProgressTable renders mission progress rows as a table.
func RenderProgressTable(list []model.MissionProgress) string {
	if len(list) == 0 {
		return SubtleStyle.Render("No missions.")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TableCellStyle.Width(6).Render("ID"),
		TableCellStyle.Width(28).Render("Mission"),
		TableCellStyle.Width(11).Render("Status"),
		TableCellStyle.Width(32).Render("Progress"),
		"Message",
	)

	rows := []string{TableHeaderStyle.Render(header)}
	for _, p := range list {
		title := fmt.Sprintf("mission %d", p.MissionID)
		if p.Mission != nil {
			title = p.Mission.Title
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			TableCellStyle.Width(6).Render(fmt.Sprintf("%d", p.MissionID)),
			TableCellStyle.Width(28).Render(truncate(title, 26)),
			TableCellStyle.Width(11).Render(StatusStyle(p.Status).Render(string(p.Status))),
			TableCellStyle.Width(32).Render(fmt.Sprintf("%s %6.2f%%", ProgressBar(p.Progress, 20), p.Progress)),
			SubtleStyle.Render(p.Message),
		))
	}
	return strings.Join(rows, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// NewProgressBar returns a progress bar for long running batch work.
func NewProgressBar(total int, writer io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
