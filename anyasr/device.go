package anyasr

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

// Device names accepted by DeviceCreator.
const (
	DeviceCPU     = "cpu"
	DeviceFloat32 = "float32"
	DeviceFloat64 = "float64"
	DeviceAccel   = "accel"
)

var accelerator struct {
	lock    sync.RWMutex
	creator anyvec.Creator
}

// RegisterAccelerator makes c the creator for the "accel"
// device.
// Accelerated anyvec backends call this from their init.
func RegisterAccelerator(c anyvec.Creator) {
	accelerator.lock.Lock()
	defer accelerator.lock.Unlock()
	accelerator.creator = c
}

// DeviceCreator returns the anyvec.Creator for a device.
// An empty name means "cpu".
//
// It returns an *anyspeech.DeviceError for unknown
// devices and for "accel" when no accelerator was
// registered.
func DeviceCreator(name string) (anyvec.Creator, error) {
	switch name {
	case "", DeviceCPU, DeviceFloat32:
		return anyvec32.CurrentCreator(), nil
	case DeviceFloat64:
		return anyvec64.CurrentCreator(), nil
	case DeviceAccel:
		accelerator.lock.RLock()
		defer accelerator.lock.RUnlock()
		if accelerator.creator == nil {
			return nil, &anyspeech.DeviceError{Device: name, Reason: "no accelerator registered"}
		}
		return accelerator.creator, nil
	default:
		return nil, &anyspeech.DeviceError{Device: name, Reason: "unknown device"}
	}
}

// toDevice copies v to the creator c, unless it already
// belongs to c.
func toDevice(v anyvec.Vector, c anyvec.Creator) anyvec.Vector {
	if c == nil || v.Creator() == c {
		return v
	}
	switch data := v.Data().(type) {
	case []float32:
		conv := make([]float64, len(data))
		for i, x := range data {
			conv[i] = float64(x)
		}
		return c.MakeVectorData(c.MakeNumericList(conv))
	case []float64:
		return c.MakeVectorData(c.MakeNumericList(data))
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", data))
	}
}

// sameDevice checks if vectors made by a and b can be
// used together.
func sameDevice(a, b anyvec.Creator) bool {
	return a == b || reflect.TypeOf(a.MakeVector(0)) == reflect.TypeOf(b.MakeVector(0))
}
