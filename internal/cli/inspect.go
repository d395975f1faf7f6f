package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/detectoo/detectoo/internal/chance"
	"github.com/detectoo/detectoo/internal/heatmap"
	"github.com/detectoo/detectoo/internal/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image]",
	Short: "Open the interactive detector",
	Long: `Open a terminal UI for analyzing images. Optionally pass an image to
analyze right away; press o inside the UI to open another.

Examples:
  detectoo inspect
  detectoo inspect photo.jpg
  detectoo inspect --out ./exports photo.jpg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("out", ".", "directory for exported heatmaps and reports")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The UI owns the terminal; logs only go to --log-file.
	logger, closeLog, err := newLogger(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	outDir, _ := cmd.Flags().GetString("out")
	var path string
	if len(args) == 1 {
		path = args[0]
	}

	return tui.Run(tui.Options{
		Analyzer:     newAnalyzer(cfg, chance.Default(), logger),
		Heatmap:      heatmap.Options{Labels: cfg.HeatmapLabels},
		UploadLimits: cfg.UploadLimits(),
		OutputDir:    outDir,
		Logger:       logger,
	}, path)
}
