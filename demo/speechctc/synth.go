package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/unixpickle/anyspeech/anyfeat"
)

var (
	synthCount   int
	synthClasses int
	synthMaxLen  int
	synthWAVDir  string
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Fill the cache with synthetic tone utterances",
	Long: `Fill the cache with synthetic tone utterances.

Every class is a pure tone of its own pitch, and an utterance is a
random label sequence played as tones separated by silence. This
gives a quick end to end check of the loss and decoders.`,
	Args: cobra.NoArgs,
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().IntVar(&synthCount, "count", 16, "number of utterances")
	synthCmd.Flags().IntVar(&synthClasses, "classes", 4, "number of classes")
	synthCmd.Flags().IntVar(&synthMaxLen, "max-labels", 4, "maximum labels per utterance")
	synthCmd.Flags().StringVar(&synthWAVDir, "wav-dir", "", "also write WAV files here")
}

func runSynth(cmd *cobra.Command, args []string) error {
	if synthClasses < 1 || synthMaxLen < 1 {
		return fmt.Errorf("need at least one class and label (got %d, %d)", synthClasses,
			synthMaxLen)
	}
	fbank, err := loadFbank()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	rate := fbank.Config().SampleRate
	for i := 0; i < synthCount; i++ {
		labels := make([]int, 1+rand.Intn(synthMaxLen))
		for j := range labels {
			labels[j] = rand.Intn(synthClasses)
		}
		pcm := synthTones(labels, rate)
		features := fbank.ComputeInt16(pcm)
		anyfeat.CMVN(features)
		key, err := cache.PutNew(&anyfeat.Entry{Features: features, Labels: labels})
		if err != nil {
			return err
		}
		if synthWAVDir != "" {
			if err := writeSynthWAV(filepath.Join(synthWAVDir, key+".wav"), pcm, rate); err != nil {
				return err
			}
		}
		logger.Info("synthesized", "key", key, "labels", labels, "frames", len(features))
	}
	return nil
}

func synthTones(labels []int, rate int) []int16 {
	tone := rate / 5
	gap := rate / 20
	pcm := make([]int16, gap, gap+len(labels)*(tone+gap))
	for _, label := range labels {
		freq := 300 + 250*float64(label)
		for i := 0; i < tone; i++ {
			x := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
			pcm = append(pcm, int16(x*32767))
		}
		pcm = append(pcm, make([]int16, gap)...)
	}
	return pcm
}

func writeSynthWAV(path string, pcm []int16, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return anyfeat.WriteWAV(f, pcm, rate)
}
