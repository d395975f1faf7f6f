package tui

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/report"
)

func loadFile(path string, lim intake.Limits) tea.Cmd {
	return func() tea.Msg {
		u, err := intake.Open(path, lim)
		return fileLoadedMsg{upload: u, err: err}
	}
}

// heatmapPath returns "<dir>/<base>_heatmap.png" for the source file name.
func heatmapPath(dir, name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "image"
	}
	return filepath.Join(dir, base+"_heatmap.png")
}

func exportHeatmap(dir, name string, img image.Image) tea.Cmd {
	return func() tea.Msg {
		path := heatmapPath(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return savedMsg{what: "heatmap", err: err}
		}
		if err := heatmap.EncodePNG(f, img); err != nil {
			f.Close()
			return savedMsg{what: "heatmap", err: err}
		}
		if err := f.Close(); err != nil {
			return savedMsg{what: "heatmap", err: err}
		}
		return savedMsg{what: "heatmap", path: path}
	}
}

func writeReport(dir string, r model.AnalysisResult, regions []model.Region, now time.Time) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(dir, report.Filename(now))
		if err := os.WriteFile(path, []byte(report.Text(r, regions)), 0o644); err != nil {
			return savedMsg{what: "report", err: fmt.Errorf("writing report: %w", err)}
		}
		return savedMsg{what: "report", path: path}
	}
}
