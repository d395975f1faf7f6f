// Package tui implements the Bubble Tea terminal user interface.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/logging"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/session"
)

type page int

const (
	pageDetector page = iota
	pageHistory
	pageAbout
	pageCount
)

func (p page) String() string {
	switch p {
	case pageDetector:
		return "Detector"
	case pageHistory:
		return "History"
	default:
		return "About"
	}
}

// Options configures the TUI.
type Options struct {
	Analyzer     *session.Analyzer
	Heatmap      heatmap.Options
	UploadLimits intake.Limits
	// OutputDir receives exported heatmaps and reports.
	OutputDir string
	Logger    *slog.Logger
}

// Model is the top-level Bubble Tea model for detectoo.
type Model struct {
	state    session.State
	analyzer *session.Analyzer
	memo     *heatmap.Memo
	limits   intake.Limits
	outDir   string
	logger   *slog.Logger

	// initial path to load on start, if any
	initial string

	// UI state
	width    int
	height   int
	page     page
	showHelp bool
	status   string

	spinner   spinner.Model
	input     textinput.Model
	prompting bool
}

// fileLoadedMsg carries the result of reading a file from disk.
type fileLoadedMsg struct {
	upload *intake.Upload
	err    error
}

// analysisDueMsg fires when the analysis delay for gen has elapsed.
type analysisDueMsg struct {
	gen uint64
}

// analysisDoneMsg carries a finished analysis for gen.
type analysisDoneMsg struct {
	gen     uint64
	result  model.AnalysisResult
	regions []model.Region
}

// savedMsg reports a file written by an export or report command.
type savedMsg struct {
	what string
	path string
	err  error
}

// New creates a new TUI model.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "."
	}

	ti := textinput.New()
	ti.Placeholder = "path/to/image.png"
	ti.Prompt = "Image: "

	return Model{
		analyzer: opts.Analyzer,
		memo:     &heatmap.Memo{Options: opts.Heatmap},
		limits:   opts.UploadLimits,
		outDir:   outDir,
		logger:   logger,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		input: ti,
	}
}

// WithInitialPath returns a copy of m that loads path on start.
func (m Model) WithInitialPath(path string) Model {
	m.initial = path
	return m
}

// State returns the current session state.
func (m Model) State() session.State {
	return m.state
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.initial != "" {
		return loadFile(m.initial, m.limits)
	}
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case fileLoadedMsg:
		return m.handleFileLoaded(msg)

	case analysisDueMsg:
		return m.handleAnalysisDue(msg)

	case analysisDoneMsg:
		return m.handleAnalysisDone(msg), nil

	case savedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.what, msg.err)
			m.logger.Warn("save failed", "what", msg.what, "error", msg.err)
		} else {
			m.status = fmt.Sprintf("%s saved to %s", msg.what, msg.path)
			m.logger.Info("saved", "what", msg.what, "path", msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		if m.state.Phase != session.PhaseLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Page):
		m.page = (m.page + 1) % pageCount

	case key.Matches(msg, keys.Open):
		m.prompting = true
		m.status = ""
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, keys.Heatmap):
		m.state = session.Reduce(m.state, session.HeatmapToggled{})

	case key.Matches(msg, keys.Reset):
		m.state = session.Reduce(m.state, session.Reset{})
		m.memo.Reset()
		m.status = ""

	case key.Matches(msg, keys.Export):
		if m.state.Phase != session.PhaseResult {
			m.status = "nothing to export yet"
			return m, nil
		}
		img := m.memo.Get(m.state.Image(), m.state.Regions)
		return m, exportHeatmap(m.outDir, m.state.Upload.Name, img)

	case key.Matches(msg, keys.Report):
		if m.state.Result == nil {
			m.status = "no analysis to report"
			return m, nil
		}
		return m, writeReport(m.outDir, *m.state.Result, m.state.Regions, time.Now())
	}

	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, keys.Cancel):
		m.prompting = false
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Submit):
		path := strings.TrimSpace(m.input.Value())
		m.prompting = false
		m.input.Blur()
		if path == "" {
			return m, nil
		}
		return m, loadFile(path, m.limits)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleFileLoaded(msg fileLoadedMsg) (tea.Model, tea.Cmd) {
	// Undecodable images still come with an upload for the reducer.
	if msg.err != nil && !errors.Is(msg.err, intake.ErrDecode) {
		m.status = msg.err.Error()
		m.logger.Warn("open failed", "error", msg.err)
		return m, nil
	}

	m.page = pageDetector
	m.status = ""
	m.state = session.Reduce(m.state, session.FileSelected{Upload: msg.upload})
	if m.state.Phase != session.PhaseLoading || m.state.Upload != msg.upload {
		m.logger.Info("file rejected", "file", msg.upload.Name, "mime", msg.upload.MIME, "reason", m.state.Err)
		return m, nil
	}

	m.logger.Info("analysis scheduled",
		"file", msg.upload.Name,
		"generation", m.state.Generation,
		"delay", m.delay(),
	)
	return m, tea.Batch(m.spinner.Tick, m.scheduleAnalysis(m.state.Generation))
}

// handleAnalysisDue starts the sampler pass off the update loop.
func (m Model) handleAnalysisDue(msg analysisDueMsg) (tea.Model, tea.Cmd) {
	// Superseded by a newer file or a reset.
	if msg.gen != m.state.Generation || m.state.Upload == nil || m.state.Result != nil || m.analyzer == nil {
		return m, nil
	}

	a, u, gen := m.analyzer, m.state.Upload, msg.gen
	return m, func() tea.Msg {
		result, regions := a.Analyze(u)
		return analysisDoneMsg{gen: gen, result: result, regions: regions}
	}
}

func (m Model) handleAnalysisDone(msg analysisDoneMsg) Model {
	if msg.gen != m.state.Generation || m.state.Result != nil {
		m.logger.Debug("stale analysis dropped", "generation", msg.gen, "current", m.state.Generation)
		return m
	}

	m.state = session.Reduce(m.state, session.AnalysisCompleted{
		Generation: msg.gen,
		Result:     msg.result,
		Regions:    msg.regions,
	})
	if m.state.Result == nil {
		return m
	}
	m.logger.Info("analysis complete",
		"file", msg.result.FileName,
		"verdict", msg.result.Verdict,
		"confidence", msg.result.Confidence,
		"regions", len(msg.regions),
	)
	return m
}

func (m Model) delay() time.Duration {
	if m.analyzer == nil {
		return 0
	}
	return m.analyzer.Delay
}

func (m Model) scheduleAnalysis(gen uint64) tea.Cmd {
	d := m.delay()
	if d <= 0 {
		return func() tea.Msg { return analysisDueMsg{gen: gen} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return analysisDueMsg{gen: gen}
	})
}

// Run starts the TUI application. If path is non-empty it is loaded on start.
func Run(opts Options, path string) error {
	m := New(opts).WithInitialPath(path)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
