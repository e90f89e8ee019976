package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/unixpickle/anyspeech/anyfeat"
	"github.com/unixpickle/essentials"
)

var (
	transcriptPath string
	useCMVN        bool
)

var featuresCmd = &cobra.Command{
	Use:   "features [flags] file.wav...",
	Short: "Extract log-mel features of WAV files into the cache",
	Long: `Extract log-mel features of WAV files into the cache.

Every file is cached under its base name without the extension.
With --transcripts, each line "name token token..." gives the
labels of the file called name; tokens go through --vocab.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFeatures,
}

func init() {
	featuresCmd.Flags().StringVar(&transcriptPath, "transcripts", "", "transcript file")
	featuresCmd.Flags().BoolVar(&useCMVN, "cmvn", true, "normalize features per utterance")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	fbank, err := loadFbank()
	if err != nil {
		return err
	}
	transcripts, err := loadTranscripts()
	if err != nil {
		return err
	}
	cache, err := openCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	for _, path := range args {
		key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		entry, err := extractFile(fbank, path)
		if err != nil {
			return err
		}
		if transcripts != nil {
			entry.Labels, err = transcripts.labels(key)
			if err != nil {
				return err
			}
		}
		if err := cache.Put(key, entry); err != nil {
			return err
		}
		logger.Info("cached features", "key", key, "frames", len(entry.Features),
			"labels", len(entry.Labels))
	}
	return nil
}

func extractFile(fbank *anyfeat.Fbank, path string) (*anyfeat.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pcm, rate, err := anyfeat.ReadWAV(f)
	if err != nil {
		return nil, essentials.AddCtx(path, err)
	}
	if rate != fbank.Config().SampleRate {
		return nil, fmt.Errorf("%s: sample rate %d, expected %d", path, rate,
			fbank.Config().SampleRate)
	}
	features := fbank.ComputeInt16(pcm)
	if useCMVN {
		anyfeat.CMVN(features)
	}
	return &anyfeat.Entry{Features: features}, nil
}

type transcriptSet struct {
	vocab  *anyfeat.Vocab
	tokens map[string][]string
}

func loadTranscripts() (*transcriptSet, error) {
	if transcriptPath == "" {
		return nil, nil
	}
	vocab, err := loadVocab()
	if err != nil {
		return nil, err
	}
	if vocab == nil {
		return nil, fmt.Errorf("transcripts need a --vocab")
	}
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, essentials.AddCtx("load transcripts", err)
	}
	res := &transcriptSet{vocab: vocab, tokens: map[string][]string{}}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			res.tokens[fields[0]] = fields[1:]
		}
	}
	return res, nil
}

func (t *transcriptSet) labels(key string) ([]int, error) {
	tokens, ok := t.tokens[key]
	if !ok {
		return nil, fmt.Errorf("no transcript for %s", key)
	}
	labels, err := t.vocab.Encode(tokens)
	if err != nil {
		return nil, essentials.AddCtx(key, err)
	}
	return labels, nil
}
