// Command speechctc drives CTC speech recognition models:
// it extracts features into a cache, scores cached
// utterances, and decodes them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	configPath  string
	modelPath   string
	cacheDir    string
	vocabPath   string
	fbankPath   string
	deviceName  string
	batchSize   int
	holdout     float64
	subset      string
	logger      *slog.Logger
	interrupted <-chan struct{}
)

var rootCmd = &cobra.Command{
	Use:   "speechctc",
	Short: "Tooling for CTC speech models",
	Long: `speechctc works with CTC speech recognition models.

Commands:
  features  Extract log-mel features of WAV files into a cache
  synth     Fill a cache with synthetic tone utterances
  loss      Compute the CTC loss of cached utterances
  decode    Decode cached utterances

A model is read from --model if the file exists. Otherwise it is
built from the YAML --config and, if --model is set, saved there.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug records")
	flags.StringVar(&configPath, "config", "", "model YAML config")
	flags.StringVar(&modelPath, "model", "", "serialized model file")
	flags.StringVar(&cacheDir, "cache", "features", "feature cache directory")
	flags.StringVar(&vocabPath, "vocab", "", "vocabulary file (one token per line)")
	flags.StringVar(&fbankPath, "fbank", "", "filterbank YAML config (defaults if empty)")
	flags.StringVar(&deviceName, "device", "", "compute device: cpu, float32, float64, accel")
	flags.IntVar(&batchSize, "batch", 8, "utterances per batch")
	flags.Float64Var(&holdout, "holdout", 0.1, "fraction of cached keys held out")
	flags.StringVar(&subset, "subset", "all", "cached keys to use: all, train, holdout")

	rootCmd.AddCommand(featuresCmd, synthCmd, lossCmd, decodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
