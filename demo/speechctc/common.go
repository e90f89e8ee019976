package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/unixpickle/anyspeech/anyasr"
	"github.com/unixpickle/anyspeech/anyfeat"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/rip"
	"github.com/unixpickle/serializer"
)

func openCache() (*anyfeat.Cache, error) {
	return anyfeat.OpenCache(anyfeat.CacheOptions{Dir: cacheDir, Logger: logger})
}

func loadFbank() (*anyfeat.Fbank, error) {
	cfg := anyfeat.DefaultConfig()
	if fbankPath != "" {
		data, err := os.ReadFile(fbankPath)
		if err != nil {
			return nil, essentials.AddCtx("load fbank config", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, essentials.AddCtx("load fbank config", err)
		}
	}
	return anyfeat.NewFbank(cfg)
}

func loadVocab() (*anyfeat.Vocab, error) {
	if vocabPath == "" {
		return nil, nil
	}
	return anyfeat.LoadVocab(vocabPath)
}

// loadModel reads the model file, or builds a new model
// from the config.
func loadModel() (*anyasr.Model, error) {
	var device string
	var model *anyasr.Model
	if _, err := os.Stat(modelPath); modelPath != "" && err == nil {
		if err := serializer.LoadAny(modelPath, &model); err != nil {
			return nil, essentials.AddCtx("load model", err)
		}
		logger.Info("loaded model", "path", modelPath)
	} else {
		if configPath == "" {
			return nil, errors.New("load model: need --config or an existing --model")
		}
		cfg, err := anyasr.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		model, err = cfg.Build()
		if err != nil {
			return nil, err
		}
		device = cfg.Device
		logger.Info("built model", "config", configPath, "params", len(model.Parameters()))
		if modelPath != "" {
			if err := serializer.SaveAny(modelPath, model); err != nil {
				return nil, essentials.AddCtx("save model", err)
			}
			logger.Info("saved model", "path", modelPath)
		}
	}
	if deviceName != "" {
		device = deviceName
	}
	if device != "" {
		c, err := anyasr.DeviceCreator(device)
		if err != nil {
			return nil, err
		}
		model.Creator = c
	} else {
		model.Creator = model.Device()
	}
	model.Logger = logger
	model.SetDropout(false)
	return model, nil
}

// cachedBatches reads cached entries in groups of
// batchSize and calls f for each group.
// It stops early on Ctrl+C.
func cachedBatches(cache *anyfeat.Cache, keys []string,
	f func(keys []string, entries []*anyfeat.Entry) error) error {
	if len(keys) == 0 {
		var err error
		keys, err = cache.Keys()
		if err != nil {
			return err
		}
		sort.Strings(keys)
		held, train := anyfeat.HashSplit(keys, holdout)
		switch subset {
		case "all":
		case "train":
			keys = train
		case "holdout":
			keys = held
		default:
			return fmt.Errorf("unknown subset: %s", subset)
		}
	}
	if batchSize < 1 {
		return fmt.Errorf("bad batch size: %d", batchSize)
	}
	stop := interruptChan()
	for i := 0; i < len(keys); i += batchSize {
		select {
		case <-stop:
			logger.Warn("interrupted", "done", i, "total", len(keys))
			return nil
		default:
		}
		batchKeys := keys[i:min(i+batchSize, len(keys))]
		entries := make([]*anyfeat.Entry, len(batchKeys))
		for j, key := range batchKeys {
			entry, err := cache.Get(key)
			if err != nil {
				return err
			}
			entries[j] = entry
		}
		if err := f(batchKeys, entries); err != nil {
			return err
		}
	}
	return nil
}

func interruptChan() <-chan struct{} {
	if interrupted == nil {
		interrupted = rip.NewRIP().Chan()
	}
	return interrupted
}

func collate(m *anyasr.Model, entries []*anyfeat.Entry) (*anyasr.Batch, error) {
	inputs := make([][][]float64, len(entries))
	labels := make([][]int, len(entries))
	for i, e := range entries {
		inputs[i] = e.Features
		labels[i] = e.Labels
	}
	return m.Collator(nil).Collate(inputs, labels)
}

func renderLabels(v *anyfeat.Vocab, labels []int) string {
	if v != nil {
		return v.Render(labels, " ")
	}
	return fmt.Sprint(labels)
}
