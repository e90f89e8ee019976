package anyasr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyspeech/anyconv"
	"github.com/unixpickle/anyspeech/anyctc"
	"github.com/unixpickle/anyspeech/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// Default beam size of the decoders.
const DefaultBeamSize = 3

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// A Model is a CTC speech recognizer.
//
// The Projection maps every encoder frame to OutputDim+1
// scores: one per real class, then one for the blank.
type Model struct {
	Encoder    Encoder
	Projection *anyspeech.Projection
	OutputDim  int

	// Creator is the compute device.
	// It must be the creator of the parameters.
	// If nil, Device() is used.
	Creator anyvec.Creator

	// PerExampleLengths is passed on to Collators made by
	// the model.
	PerExampleLengths bool

	// BestPath is used by Infer.
	// If nil, a BeamSearch of DefaultBeamSize is used.
	BestPath anyctc.Decoder

	// Distribution is used by InferDistribution.
	// If nil, a Distribution of DefaultBeamSize is used.
	Distribution anyctc.Decoder

	// Logger receives debug records.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DeserializeModel deserializes a Model.
// The result has no Creator, decoders, or Logger.
func DeserializeModel(d []byte) (*Model, error) {
	var enc Encoder
	var proj *anyspeech.Projection
	var outDim, perExample serializer.Int
	if err := serializer.DeserializeAny(d, &enc, &proj, &outDim, &perExample); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	if proj.OutDim != int(outDim)+1 || proj.InDim != enc.HiddenSize() {
		return nil, errors.New("deserialize Model: projection does not match encoder")
	}
	return &Model{
		Encoder:           enc,
		Projection:        proj,
		OutputDim:         int(outDim),
		PerExampleLengths: perExample == 1,
	}, nil
}

// Classes returns the model's class space.
func (m *Model) Classes() ClassSpace {
	return ClassSpace{OutputDim: m.OutputDim}
}

// Compensator returns the time-axis bookkeeping for the
// model's encoder.
func (m *Model) Compensator() *Compensator {
	return NewCompensator(m.Encoder)
}

// Device returns the creator of the model's parameters.
func (m *Model) Device() anyvec.Creator {
	return m.Projection.Weights.Vector.Creator()
}

// Collator creates a Collator for the model.
// If c is nil, the model's compute device is used.
func (m *Model) Collator(c anyvec.Creator) *Collator {
	if c == nil {
		c = m.creator()
	}
	return &Collator{
		Creator:           c,
		Lengths:           m.Compensator(),
		OutputDim:         m.OutputDim,
		FreqDim:           m.Encoder.FreqDim(),
		PerExampleLengths: m.PerExampleLengths,
	}
}

// Forward computes the scores for a batch.
//
// The result is packed as (b.Size, outTime, OutputDim+1).
// If softmax is true, every frame is a probability
// distribution; otherwise, the scores are logits.
//
// The input is padded on both ends of the time axis by
// Compensator().Padding() frames before it is encoded.
func (m *Model) Forward(b *Batch, s State, softmax bool) (anydiff.Res, int, State, error) {
	if b.Size == 0 {
		return nil, 0, State{}, anyspeech.ErrEmptyBatch
	}
	if b.FreqDim != m.Encoder.FreqDim() {
		return nil, 0, State{}, &anyspeech.ShapeError{Op: "forward", What: "frequency dim",
			Want: m.Encoder.FreqDim(), Got: b.FreqDim}
	}
	if n := b.Size * b.MaxTime * b.FreqDim; b.Inputs.Len() != n {
		return nil, 0, State{}, &anyspeech.ShapeError{Op: "forward", What: "input size",
			Want: n, Got: b.Inputs.Len()}
	}
	if !s.IsZero() && len(s.inner.Present()) != b.Size {
		return nil, 0, State{}, &anyspeech.ShapeError{Op: "forward", What: "state batch size",
			Want: b.Size, Got: len(s.inner.Present())}
	}
	if m.Projection.InDim != m.Encoder.HiddenSize() {
		return nil, 0, State{}, &anyspeech.ShapeError{Op: "forward", What: "projection input",
			Want: m.Encoder.HiddenSize(), Got: m.Projection.InDim}
	}

	if c := m.creator(); !sameDevice(c, m.Device()) {
		return nil, 0, State{}, &anyspeech.DeviceError{
			Device: fmt.Sprintf("%T", c),
			Reason: fmt.Sprintf("parameters live on %T", m.Device()),
		}
	}

	in := anydiff.NewConst(toDevice(b.Inputs, m.creator()))
	shape := anyconv.Shape{Time: b.MaxTime, Freq: b.FreqDim, Depth: 1}
	padding := anyconv.NewTimePadding(m.Compensator().Padding())
	padded := padding.Apply(in, b.Size, shape)
	paddedTime := padding.OutShape(shape).Time

	hidden, outTime, next := m.Encoder.Encode(padded, b.Size, paddedTime, s)
	frames := b.Size * outTime
	out := m.Projection.Apply(hidden, frames)
	if softmax {
		out = anyspeech.Softmax.Apply(out, frames)
	}
	return out, outTime, next, nil
}

// Loss computes the CTC loss of every example in a batch.
//
// Examples whose labels cannot be aligned with their
// input length get a loss of +Inf.
func (m *Model) Loss(b *Batch) (anydiff.Res, error) {
	logits, outTime, _, err := m.Forward(b, State{}, false)
	if err != nil {
		return nil, essentials.AddCtx("loss", err)
	}
	classes := m.Classes()
	blank := classes.Position(Blank)
	logProbs := anyspeech.LogSoftmax.Apply(logits, b.Size*outTime)
	timeMajor := swapAxes(logProbs, b.Size, outTime, classes.Size())

	m.logger().Debug("ctc loss",
		"logits", []int{b.Size, outTime, classes.Size()},
		"log_probs", []int{outTime, b.Size, classes.Size()},
		"labels", len(b.Labels),
		"input_lens", b.InputLens,
		"label_lens", b.LabelLens)

	res, err := anyctc.Loss(timeMajor, outTime, b.Size, b.Labels, b.InputLens, b.LabelLens,
		blank, anyctc.ReduceNone)
	if err != nil {
		return nil, essentials.AddCtx("loss", err)
	}
	return res, nil
}

// Infer decodes the most likely labels of every example
// with the BestPath decoder.
// Blanks in the decoder's output are dropped.
func (m *Model) Infer(b *Batch) ([][]int, error) {
	decoder := m.BestPath
	if decoder == nil {
		decoder = &anyctc.BeamSearch{Width: DefaultBeamSize}
	}
	classes := m.Classes()
	var res [][]int
	err := m.eachExample(b, func(probs [][]float64) {
		hyps := decoder.Decode(probs, classes.Position(Blank))
		if len(hyps) == 0 {
			res = append(res, []int{})
		} else {
			res = append(res, classes.Labels(hyps[0].Labels))
		}
	})
	return res, err
}

// InferMaxDecode decodes every example by collapsing the
// most likely class of every frame.
func (m *Model) InferMaxDecode(b *Batch) ([][]int, error) {
	blank := m.Classes().Position(Blank)
	var res [][]int
	err := m.eachExample(b, func(probs [][]float64) {
		path := make([]int, len(probs))
		for t, frame := range probs {
			path[t] = argmax(frame)
		}
		res = append(res, MaxDecode(path, blank))
	})
	return res, err
}

// InferDistribution decodes ranked hypotheses for every
// example with the Distribution decoder.
//
// If numResults is positive, at most numResults
// hypotheses are returned per example.
func (m *Model) InferDistribution(b *Batch, numResults int) ([][]anyctc.Hypothesis, error) {
	decoder := m.Distribution
	if decoder == nil {
		decoder = &anyctc.Distribution{Width: DefaultBeamSize}
	}
	classes := m.Classes()
	var res [][]anyctc.Hypothesis
	err := m.eachExample(b, func(probs [][]float64) {
		hyps := decoder.Decode(probs, classes.Position(Blank))
		if numResults > 0 && len(hyps) > numResults {
			hyps = hyps[:numResults]
		}
		for i, h := range hyps {
			hyps[i].Labels = classes.Labels(h.Labels)
		}
		res = append(res, hyps)
	})
	return res, err
}

// Parameters returns the encoder and projection
// parameters.
func (m *Model) Parameters() []*anydiff.Var {
	return anyspeech.AllParameters(m.Encoder, m.Projection)
}

// SetDropout enables or disables dropout throughout the
// model.
func (m *Model) SetDropout(enabled bool) {
	if c, ok := m.Encoder.(*ConvRNN); ok {
		for _, s := range c.FrontEnd.Stages {
			if p, ok := s.(*anyconv.Pointwise); ok {
				setDropout(p.Layer, enabled)
			}
		}
		if stack, ok := c.Forward.(anyrnn.Stack); ok {
			for _, block := range stack {
				if l, ok := block.(*anyrnn.LayerBlock); ok {
					setDropout(l.Layer, enabled)
				}
			}
		}
		if c.Dropout != nil {
			c.Dropout.Enabled = enabled
		}
	}
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyasr.Model"
}

// Serialize serializes the model.
// It fails if the encoder is not a serializer.Serializer.
func (m *Model) Serialize() ([]byte, error) {
	enc, ok := m.Encoder.(serializer.Serializer)
	if !ok {
		return nil, fmt.Errorf("serialize Model: not a Serializer: %T", m.Encoder)
	}
	perExample := serializer.Int(0)
	if m.PerExampleLengths {
		perExample = 1
	}
	return serializer.SerializeAny(enc, m.Projection, serializer.Int(m.OutputDim), perExample)
}

// eachExample runs the model in probability mode and
// calls f with the (time, class) matrix of each example,
// in batch order.
func (m *Model) eachExample(b *Batch, f func(probs [][]float64)) error {
	probs, outTime, _, err := m.Forward(b, State{}, true)
	if err != nil {
		return essentials.AddCtx("infer", err)
	}
	classes := m.Classes().Size()
	data := floats64(probs.Output())
	for i := 0; i < b.Size; i++ {
		rows := make([][]float64, outTime)
		for t := range rows {
			start := (i*outTime + t) * classes
			rows[t] = data[start : start+classes]
		}
		f(rows)
	}
	return nil
}

func (m *Model) creator() anyvec.Creator {
	if m.Creator != nil {
		return m.Creator
	}
	return m.Device()
}

func (m *Model) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func setDropout(l anyspeech.Layer, enabled bool) {
	switch l := l.(type) {
	case *anyspeech.Dropout:
		l.Enabled = enabled
	case anyspeech.Net:
		anyspeech.SetDropout(l, enabled)
	}
}

func argmax(v []float64) int {
	var idx int
	for i, x := range v {
		if x > v[idx] {
			idx = i
		}
	}
	return idx
}

func floats64(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
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
