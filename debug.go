package anyspeech

import (
	"log/slog"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Debug{}).SerializerType(), DeserializeDebug)
}

// Debug is a pass-through layer which logs the shape of
// its input and, optionally, per-component statistics.
//
// Records are emitted at debug level, so they only show
// up when the logger's handler enables it.
type Debug struct {
	// Logger receives the records.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	ID           string
	LogMean      bool
	LogVariance  bool
	LogAbsMaxima bool
}

// DeserializeDebug deserializes a Debug layer.
// The Logger will be nil.
func DeserializeDebug(d []byte) (*Debug, error) {
	var res Debug
	err := serializer.DeserializeAny(d, &res.ID, &res.LogMean, &res.LogVariance,
		&res.LogAbsMaxima)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Apply logs information about its input and returns
// the input untouched.
func (d *Debug) Apply(in anydiff.Res, n int) anydiff.Res {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vec := in.Output()
	attrs := []any{"id", d.ID, "batch", n, "len", vec.Len()}
	if n > 0 && vec.Len() > 0 {
		cols := vec.Len() / n
		attrs = append(attrs, "cols", cols)
		if d.LogMean || d.LogVariance {
			mean := anyvec.SumRows(vec, cols)
			normalizer := mean.Creator().MakeNumeric(1 / float64(n))
			mean.Scale(normalizer)
			if d.LogMean {
				attrs = append(attrs, "mean", mean.Data())
			}
			if d.LogVariance {
				two := mean.Creator().MakeNumeric(2)
				squared := vec.Copy()
				anyvec.Pow(squared, two)
				variance := anyvec.SumRows(squared, cols)
				variance.Scale(normalizer)
				anyvec.Pow(mean, two)
				variance.Sub(mean)
				attrs = append(attrs, "variance", variance.Data())
			}
		}
		if d.LogAbsMaxima {
			attrs = append(attrs, "absmax", anyvec.AbsMax(vec))
		}
	}
	logger.Debug("layer input", attrs...)
	return in
}

// SerializerType returns the unique ID used to serialize
// a Debug layer with the serializer package.
func (d *Debug) SerializerType() string {
	return "github.com/unixpickle/anyspeech.Debug"
}

// Serialize serializes the layer.
func (d *Debug) Serialize() ([]byte, error) {
	return serializer.SerializeAny(d.ID, d.LogMean, d.LogVariance, d.LogAbsMaxima)
}
