package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/detectoo/detectoo/internal/chance"
	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/intake"
	"github.com/detectoo/detectoo/internal/model"
	"github.com/detectoo/detectoo/internal/report"
	"github.com/detectoo/detectoo/internal/session"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Analyze an image and print a report (non-interactive)",
	Long: `Analyze one image and print the report. Useful for scripts and for
producing heatmap PNGs without the UI.

Exit codes:
  0 — analysis completed
  1 — the file is not an image, cannot be decoded or cannot be read`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringP("format", "f", "text", "output format: text, json, markdown")
	f.String("heatmap", "", "write the heatmap PNG to this path")
	f.String("report-dir", "", "also write the text report into this directory")
	f.Duration("delay", 0, "wait this long before analyzing")
	f.Uint64("seed", 0, "seed the random source for reproducible output")
	f.Int("tile", 0, "tile size in pixels (default from config)")
	f.Bool("no-color", false, "disable syntax colors for json and markdown")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	switch format {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if flags.Changed("tile") {
		cfg.TileSize, _ = flags.GetInt("tile")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	delay, _ := flags.GetDuration("delay")
	cfg.DelayMillis = int(delay / time.Millisecond)

	src := chance.Default()
	if flags.Changed("seed") {
		seed, _ := flags.GetUint64("seed")
		src = chance.New(seed)
	}

	u, err := intake.Open(args[0], cfg.UploadLimits())
	if err != nil && !errors.Is(err, intake.ErrDecode) {
		return err
	}

	st := session.Reduce(session.State{}, session.FileSelected{Upload: u})
	if st.Phase == session.PhaseError {
		logger.Debug("upload rejected", "file", u.Name, "mime", u.MIME)
		return fmt.Errorf("%s: %s", u.Name, st.Err)
	}

	analyzer := newAnalyzer(cfg, src, logger)
	completed, err := analyzer.Run(cmd.Context(), st.Generation, u)
	if err != nil {
		return err
	}
	st = session.Reduce(st, completed)
	result, regions := *st.Result, st.Regions
	logger.Info("analysis complete",
		"file", result.FileName,
		"verdict", result.Verdict,
		"regions", len(regions),
	)

	if path, _ := flags.GetString("heatmap"); path != "" {
		if err := writeHeatmap(path, u, regions, cfg.HeatmapLabels); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Heatmap written to %s\n", path)
	}
	if dir, _ := flags.GetString("report-dir"); dir != "" {
		path := filepath.Join(dir, report.Filename(time.Now()))
		if err := os.WriteFile(path, []byte(report.Text(result, regions)), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", path)
	}

	noColor, _ := flags.GetBool("no-color")
	return printReport(cmd.OutOrStdout(), format, result, regions, !noColor && isTerminal(cmd.OutOrStdout()))
}

func printReport(w io.Writer, format string, r model.AnalysisResult, regions []model.Region, color bool) error {
	switch format {
	case "json":
		out, err := report.JSON(r, regions)
		if err != nil {
			return err
		}
		if color {
			return report.Highlight(w, string(out), "json")
		}
		_, err = w.Write(out)
		return err
	case "markdown":
		md := report.Markdown(r, regions)
		if color {
			return report.Highlight(w, md, "markdown")
		}
		_, err := io.WriteString(w, md)
		return err
	default:
		_, err := io.WriteString(w, report.Text(r, regions))
		return err
	}
}

func writeHeatmap(path string, u *intake.Upload, regions []model.Region, labels bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating heatmap: %w", err)
	}
	img := heatmap.Render(u.Image, regions, heatmap.Options{Labels: labels})
	if err := heatmap.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
