package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"github.com/unixpickle/anyspeech/anyfeat"
)

var lossCmd = &cobra.Command{
	Use:   "loss [flags] [key...]",
	Short: "Compute the CTC loss of cached utterances",
	Long: `Compute the CTC loss of cached utterances.

Without keys, every cached utterance is scored. Utterances whose
labels do not fit their length get an infinite loss and are left
out of the mean.`,
	RunE: runLoss,
}

func runLoss(cmd *cobra.Command, args []string) error {
	model, err := loadModel()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	var total float64
	var count, infeasible int
	err = cachedBatches(cache, args, func(keys []string, entries []*anyfeat.Entry) error {
		batch, err := collate(model, entries)
		if err != nil {
			return err
		}
		losses, err := model.Loss(batch)
		if err != nil {
			return err
		}
		for i, loss := range floatData(losses.Output().Data()) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%f\n", keys[i], loss)
			if math.IsInf(loss, 1) {
				infeasible++
			} else {
				total += loss
				count++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("loss", "mean", total/float64(count), "scored", count,
			"infeasible", infeasible)
	}
	return nil
}

func floatData(data interface{}) []float64 {
	switch data := data.(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
}
