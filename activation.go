package anyspeech

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is an element-wise or per-frame
// activation function.
type Activation int

// These are the supported activations.
// Softmax and LogSoftmax normalize each frame (each of
// the n packed vectors) separately.
const (
	Tanh Activation = iota
	LogSoftmax
	Sigmoid
	ReLU
	Softmax
)

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > Softmax {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// ActivationNamed looks up an activation by its markup
// name ("tanh", "sigmoid", "relu", "logsoftmax",
// "softmax").
func ActivationNamed(name string) (Activation, error) {
	switch name {
	case "tanh", "Tanh":
		return Tanh, nil
	case "sigmoid", "Sigmoid":
		return Sigmoid, nil
	case "relu", "ReLU":
		return ReLU, nil
	case "logsoftmax", "LogSoftmax":
		return LogSoftmax, nil
	case "softmax", "Softmax":
		return Softmax, nil
	}
	return 0, fmt.Errorf("unknown activation: %s", name)
}

// Apply applies the activation to n packed vectors.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case LogSoftmax:
		return anydiff.LogSoftmax(in, chunkSize(in, n))
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	case Softmax:
		return anydiff.Exp(anydiff.LogSoftmax(in, chunkSize(in, n)))
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/anyspeech.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}

func chunkSize(in anydiff.Res, n int) int {
	inLen := in.Output().Len()
	if inLen == 0 {
		return 1
	}
	if n == 0 || inLen%n != 0 {
		panic("batch size must divide input length")
	}
	return inLen / n
}
