// Package cli wires the detectoo commands.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/detectoo/detectoo/internal/chance"
	"github.com/detectoo/detectoo/internal/config"
	"github.com/detectoo/detectoo/internal/logging"
	"github.com/detectoo/detectoo/internal/sampler"
	"github.com/detectoo/detectoo/internal/session"
	"github.com/detectoo/detectoo/internal/verdict"
)

var rootCmd = &cobra.Command{
	Use:   "detectoo",
	Short: "Open source AI image detection demo",
	Long: `detectoo splits an image into tiles, labels each tile as AI-generated or
real with a pixel-uniformity heuristic and reports an overall verdict.

The verdict and its metrics are illustrative placeholders, not a classifier.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to a JSON config file")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text, json")
	pf.String("log-file", "", "write logs to a rotating file")

	rootCmd.AddCommand(inspectCmd, analyzeCmd, serveCmd, configCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. Without a log file, output goes to
// fallback.
func newLogger(cfg *config.Config, fallback io.Writer) (*slog.Logger, func() error, error) {
	if fallback == nil {
		fallback = os.Stderr
	}
	return logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		File:     cfg.LogFile,
		Fallback: fallback,
	})
}

// newAnalyzer builds the sampler and verdict generator from cfg.
func newAnalyzer(cfg *config.Config, src chance.Source, logger *slog.Logger) *session.Analyzer {
	smp := sampler.New(src, logger)
	smp.TileSize = cfg.TileSize
	smp.Threshold = cfg.Threshold
	return &session.Analyzer{
		Sampler: smp,
		Verdict: verdict.New(src),
		Delay:   cfg.Delay(),
	}
}
