package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testModelConfig = `
output_dim: 3
freq_dim: 10
front_end: |
  Conv(w=3, h=5, n=2)
  Tanh
hidden: 4
layers: 1
cell: lstm
device: float64
`

func TestLoadModelDevice(t *testing.T) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	configPath = filepath.Join(dir, "model.yaml")
	modelPath = filepath.Join(dir, "model.bin")
	defer func() {
		configPath, modelPath, deviceName = "", "", ""
	}()
	if err := os.WriteFile(configPath, []byte(testModelConfig), 0644); err != nil {
		t.Fatal(err)
	}

	built, err := loadModel()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(modelPath); err != nil {
		t.Fatalf("model was not saved: %v", err)
	}

	configPath = ""
	loaded, err := loadModel()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loaded.Creator.MakeVector(1).Data().([]float64); !ok {
		t.Errorf("expected float64 device but got %T", loaded.Creator)
	}

	feats := [][]float64{}
	for i := 0; i < 12; i++ {
		feats = append(feats, make([]float64, 10))
	}
	b, err := loaded.Collator(nil).Collate([][][]float64{feats}, [][]int{{1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loaded.Loss(b); err != nil {
		t.Errorf("loss on reloaded model: %v", err)
	}
	if built.OutputDim != loaded.OutputDim {
		t.Errorf("output dim changed: %d -> %d", built.OutputDim, loaded.OutputDim)
	}

	deviceName = "float32"
	mismatched, err := loadModel()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mismatched.Loss(b); err == nil {
		t.Error("expected device mismatch error")
	}
}

func TestDecodeUnknownMethod(t *testing.T) {
	decodeMethod = "greedy"
	defer func() { decodeMethod = "beam" }()
	if err := runDecode(decodeCmd, nil); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestSynthTones(t *testing.T) {
	pcm := synthTones([]int{0, 2}, 16000)
	if len(pcm) != 800+2*(3200+800) {
		t.Errorf("unexpected length %d", len(pcm))
	}
	if !reflect.DeepEqual(pcm[:800], make([]int16, 800)) {
		t.Error("expected leading silence")
	}
}
