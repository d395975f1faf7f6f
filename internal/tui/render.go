package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/session"
	"github.com/detectoo/detectoo/internal/verdict"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var body string
	switch m.page {
	case pageHistory:
		body = m.renderHistory()
	case pageAbout:
		body = renderAbout()
	default:
		body = m.renderDetector()
	}

	panel := panelStyle.Width(m.width - 2).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), panel, m.renderStatusBar())
}

func (m Model) renderHeader() string {
	tabs := []string{titleStyle.Render("🔍 Detectoo"), " "}
	for p := pageDetector; p < pageCount; p++ {
		style := tabStyle
		if p == m.page {
			style = tabActiveStyle
		}
		tabs = append(tabs, style.Render(p.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderDetector() string {
	var b strings.Builder

	if m.prompting {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
	}

	st := m.state
	switch st.Phase {
	case session.PhaseIdle:
		b.WriteString(helpBarStyle.Render("Press o to open an image for analysis."))

	case session.PhaseLoading:
		fmt.Fprintf(&b, "%s Analyzing %s...", m.spinner.View(), st.Upload.Name)

	case session.PhaseError:
		b.WriteString(errorStyle.Render("✗ " + st.Err))
		if st.Result != nil {
			b.WriteString("\n\n")
			b.WriteString(renderResult(*st.Result, st.Regions, false))
		}

	case session.PhaseResult:
		b.WriteString(renderResult(*st.Result, st.Regions, st.ShowHeatmap))
	}

	return b.String()
}

func renderResult(r model.AnalysisResult, regions []model.Region, showHeatmap bool) string {
	var b strings.Builder

	vs := verdictRealStyle
	if r.IsAI {
		vs = verdictAIStyle
	}
	b.WriteString(vs.Render(fmt.Sprintf("%s  %d%%", r.Verdict, r.Confidence)))
	b.WriteByte('\n')
	b.WriteString(valueStyle.Render(r.Headline()))
	b.WriteByte('\n')

	b.WriteString(sectionHeaderStyle.Render("File"))
	b.WriteByte('\n')
	writeField(&b, "Name", r.FileName)
	writeField(&b, "Size", fmt.Sprintf("%d KB", r.FileSizeKB))
	writeField(&b, "Processing time", r.ProcessingTime)

	b.WriteString(sectionHeaderStyle.Render("Metrics"))
	b.WriteByte('\n')
	writeField(&b, "Frequency entropy", r.Metrics.FrequencyEntropy)
	writeField(&b, "Color variance", r.Metrics.ColorVariance)
	writeField(&b, "Edge consistency", r.Metrics.EdgeConsistency)
	writeField(&b, "Noise level", r.Metrics.NoiseLevel)

	methods := r.Methods
	if len(methods) == 0 {
		methods = verdict.Methods
	}
	b.WriteString(sectionHeaderStyle.Render("Methods"))
	b.WriteByte('\n')
	for _, name := range methods {
		b.WriteString("  • " + name + "\n")
	}

	c := model.CountRegions(regions)
	b.WriteString(sectionHeaderStyle.Render("Regions"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  %d analyzed, %s, %s\n",
		c.Total,
		verdictAIStyle.Render(strconv.Itoa(c.AI)+" AI"),
		verdictRealStyle.Render(strconv.Itoa(c.Real)+" real"),
	)

	if showHeatmap {
		b.WriteByte('\n')
		b.WriteString(renderGrid(regions))
	} else if len(regions) > 0 {
		b.WriteString(helpBarStyle.Render("  press h to show the region heatmap"))
	}

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteByte('\n')
}

// renderGrid draws one cell per region in raster order, labeled with its
// confidence.
func renderGrid(regions []model.Region) string {
	if len(regions) == 0 {
		return helpBarStyle.Render("  image too small for regions")
	}

	var rows []string
	var row []string
	y := regions[0].Y
	for _, r := range regions {
		if r.Y != y {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
			y = r.Y
		}
		style := realCellStyle
		if r.IsAI {
			style = aiCellStyle
		}
		row = append(row, style.Render(fmt.Sprintf("%d%%", r.Confidence)))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderHistory() string {
	if len(m.state.History) == 0 {
		return helpBarStyle.Render("No analyses yet.")
	}

	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Recent analyses (%d)", len(m.state.History))))
	b.WriteByte('\n')
	for i, r := range m.state.History {
		vs := verdictRealStyle
		if r.IsAI {
			vs = verdictAIStyle
		}
		fmt.Fprintf(&b, "  %2d. %s %s %s\n",
			i+1,
			vs.Render(fmt.Sprintf("%-16s", r.Verdict)),
			valueStyle.Render(fmt.Sprintf("%3d%%", r.Confidence)),
			labelStyle.UnsetWidth().Render(r.FileName),
		)
	}
	return b.String()
}

func renderAbout() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("About Detectoo"))
	b.WriteString("\n\n")
	b.WriteString("Detectoo is an open source demo of an AI image detector. It splits\n")
	b.WriteString("an image into tiles, labels each one by how uniform its pixels are\n")
	b.WriteString("and shows the labels as a heatmap next to an overall verdict.\n\n")
	b.WriteString(helpBarStyle.Render("The verdict and metrics are illustrative and not a real classifier."))
	return b.String()
}

func (m Model) renderStatusBar() string {
	left := " " + m.state.Phase.String()
	if m.status != "" {
		left += "  " + statusMsgStyle.Render(m.status)
	}
	right := fmt.Sprintf("history %d/%d  ? help ", len(m.state.History), model.HistoryLimit)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Detectoo - Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, k := range []struct{ key, desc string }{
		{"o", "Open an image (enter to analyze, esc to cancel)"},
		{"h", "Toggle region heatmap"},
		{"e", "Export heatmap PNG"},
		{"d", "Download text report"},
		{"x", "Reset"},
		{"tab", "Next page"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	} {
		fmt.Fprintf(&b, "  %s  %s\n", helpKeyStyle.Width(8).Render(k.key), k.desc)
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))
	return b.String()
}
