package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"github.com/unixpickle/anyspeech/anyctc"
	"github.com/unixpickle/anyspeech/anyfeat"
)

var (
	decodeMethod    string
	decodeBeam      int
	decodeResults   int
	decodeThreshold float64
)

var decodeCmd = &cobra.Command{
	Use:   "decode [flags] [key...]",
	Short: "Decode cached utterances",
	Long: `Decode cached utterances.

Methods:
  beam    prefix beam search (default)
  prefix  prefix search between blank-dominated frames
  max     collapse the most likely class of every frame
  dist    ranked hypotheses with normalized probabilities

Press Ctrl+C to stop after the current batch.`,
	RunE: runDecode,
}

func init() {
	flags := decodeCmd.Flags()
	flags.StringVar(&decodeMethod, "method", "beam", "decoding method: beam, prefix, max, dist")
	flags.IntVar(&decodeBeam, "beam", 3, "beam width")
	flags.IntVar(&decodeResults, "results", 3, "hypotheses per utterance for dist (0 for all)")
	flags.Float64Var(&decodeThreshold, "threshold", -1e-3,
		"log probability above which a blank splits the prefix search")
}

func runDecode(cmd *cobra.Command, args []string) error {
	switch decodeMethod {
	case "beam", "prefix", "max", "dist":
	default:
		return fmt.Errorf("unknown decoding method: %s", decodeMethod)
	}
	model, err := loadModel()
	if err != nil {
		return err
	}
	model.BestPath = &anyctc.BeamSearch{Width: decodeBeam}
	if decodeMethod == "prefix" {
		model.BestPath = &anyctc.PrefixSearch{Threshold: decodeThreshold}
	}
	model.Distribution = &anyctc.Distribution{Width: decodeBeam}
	vocab, err := loadVocab()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	out := cmd.OutOrStdout()
	return cachedBatches(cache, args, func(keys []string, entries []*anyfeat.Entry) error {
		batch, err := collate(model, entries)
		if err != nil {
			return err
		}
		if decodeMethod == "dist" {
			dists, err := model.InferDistribution(batch, decodeResults)
			if err != nil {
				return err
			}
			for i, hyps := range dists {
				for _, h := range hyps {
					fmt.Fprintf(out, "%s\t%.4f\t%s\n", keys[i], math.Exp(h.LogProb),
						renderLabels(vocab, h.Labels))
				}
			}
			return nil
		}
		var results [][]int
		if decodeMethod == "max" {
			results, err = model.InferMaxDecode(batch)
		} else {
			results, err = model.Infer(batch)
		}
		if err != nil {
			return err
		}
		for i, labels := range results {
			fmt.Fprintf(out, "%s\t%s\n", keys[i], renderLabels(vocab, labels))
			if entries[i].Labels != nil {
				logger.Debug("reference", "key", keys[i], "labels",
					renderLabels(vocab, entries[i].Labels))
			}
		}
		return nil
	})
}
