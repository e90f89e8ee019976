package anyasr

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyspeech/anyconv"
	"github.com/unixpickle/anyspeech/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Recurrent cell names for Config.Cell.
const (
	CellLSTM    = "lstm"
	CellVanilla = "vanilla"
)

// Mixer names for Config.Mixer.
const (
	MixerConcat = "concat"
	MixerAdd    = "add"
)

// Config describes a Model to build.
//
// An example:
//
//	output_dim: 29
//	freq_dim: 80
//	front_end: |
//	  Conv(w=5, h=5, n=32)
//	  ReLU
//	  Conv(w=5, h=5, n=32, sy=2)
//	  ReLU
//	hidden: 256
//	layers: 2
//	bidirectional: true
//	mixer: concat
//	cell: lstm
//	dropout: 0.1
//	device: float32
type Config struct {
	OutputDim int `yaml:"output_dim"`
	FreqDim   int `yaml:"freq_dim"`

	// FrontEnd is convmarkup code for anyconv.FromMarkup.
	FrontEnd string `yaml:"front_end"`

	Hidden        int     `yaml:"hidden"`
	Layers        int     `yaml:"layers"`
	Bidirectional bool    `yaml:"bidirectional"`
	Cell          string  `yaml:"cell"`

	// Mixer joins the directions of bidirectional layers.
	// "concat" (the default) doubles the hidden size;
	// "add" projects both directions to Hidden, sums them,
	// and applies tanh.
	Mixer string `yaml:"mixer"`

	Dropout       float64 `yaml:"dropout"`

	// BlankBias is added to the initial blank score.
	BlankBias float64 `yaml:"blank_bias"`

	Device            string `yaml:"device"`
	PerExampleLengths bool   `yaml:"per_example_lengths"`
}

// LoadConfig reads a YAML Config from a file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML Config.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, essentials.AddCtx("parse config", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the Config for invalid values.
func (c *Config) Validate() error {
	switch {
	case c.OutputDim <= 0:
		return fmt.Errorf("config: output_dim must be positive (got %d)", c.OutputDim)
	case c.FreqDim <= 0:
		return fmt.Errorf("config: freq_dim must be positive (got %d)", c.FreqDim)
	case c.Layers < 0:
		return fmt.Errorf("config: layers must not be negative (got %d)", c.Layers)
	case c.Layers > 0 && c.Hidden <= 0:
		return fmt.Errorf("config: hidden must be positive (got %d)", c.Hidden)
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("config: dropout must be in [0, 1) (got %f)", c.Dropout)
	}
	switch c.Cell {
	case "", CellLSTM, CellVanilla:
	default:
		return fmt.Errorf("config: unknown cell: %s", c.Cell)
	}
	switch c.Mixer {
	case "", MixerConcat, MixerAdd:
	default:
		return fmt.Errorf("config: unknown mixer: %s", c.Mixer)
	}
	return nil
}

// Build creates a randomly initialized Model.
func (c *Config) Build() (*Model, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cr, err := DeviceCreator(c.Device)
	if err != nil {
		return nil, essentials.AddCtx("build model", err)
	}
	frontEnd, err := anyconv.FromMarkup(cr, c.FreqDim, c.FrontEnd)
	if err != nil {
		return nil, essentials.AddCtx("build model", err)
	}

	enc := &ConvRNN{FrontEnd: frontEnd, Hidden: frontEnd.FrameSize()}
	if c.Dropout > 0 {
		enc.Dropout = &anyspeech.Dropout{KeepProb: 1 - c.Dropout}
	}
	inSize := enc.Hidden
	if c.Bidirectional {
		for i := 0; i < c.Layers; i++ {
			layer := &anyrnn.Bidir{
				Forward:  c.cell(cr, inSize),
				Backward: c.cell(cr, inSize),
				Mixer:    anyspeech.ConcatMixer{},
			}
			inSize = c.Hidden * 2
			if c.Mixer == MixerAdd {
				layer.Mixer = &anyspeech.AddMixer{
					In1: anyspeech.NewProjection(cr, c.Hidden, c.Hidden),
					In2: anyspeech.NewProjection(cr, c.Hidden, c.Hidden),
					Out: anyspeech.Tanh,
				}
				inSize = c.Hidden
			}
			enc.Bidir = append(enc.Bidir, layer)
		}
	} else if c.Layers > 0 {
		var stack anyrnn.Stack
		for i := 0; i < c.Layers; i++ {
			if i > 0 && enc.Dropout != nil {
				stack = append(stack, &anyrnn.LayerBlock{Layer: enc.Dropout})
			}
			stack = append(stack, c.cell(cr, inSize))
			inSize = c.Hidden
		}
		enc.Forward = stack
	}
	enc.Hidden = inSize

	proj := anyspeech.NewProjection(cr, inSize, c.OutputDim+1)
	if c.BlankBias != 0 {
		proj.BiasClass(c.OutputDim, c.BlankBias)
	}
	return &Model{
		Encoder:           enc,
		Projection:        proj,
		OutputDim:         c.OutputDim,
		Creator:           cr,
		PerExampleLengths: c.PerExampleLengths,
	}, nil
}

func (c *Config) cell(cr anyvec.Creator, in int) anyrnn.Block {
	if c.Cell == CellVanilla {
		return anyrnn.NewVanilla(cr, in, c.Hidden, anyspeech.Tanh)
	}
	return anyrnn.NewLSTM(cr, in, c.Hidden)
}
