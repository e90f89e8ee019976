package anyasr

import (
	"errors"
	"testing"

	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestDeviceCreator(t *testing.T) {
	for _, name := range []string{"", DeviceCPU, DeviceFloat32} {
		c, err := DeviceCreator(name)
		if err != nil {
			t.Fatal(err)
		}
		if c != anyvec32.CurrentCreator() {
			t.Errorf("device %q: unexpected creator %T", name, c)
		}
	}
	c, err := DeviceCreator(DeviceFloat64)
	if err != nil {
		t.Fatal(err)
	}
	if c != anyvec64.CurrentCreator() {
		t.Errorf("unexpected creator %T", c)
	}

	var devErr *anyspeech.DeviceError
	if _, err := DeviceCreator("tpu"); !errors.As(err, &devErr) || devErr.Device != "tpu" {
		t.Errorf("expected DeviceError but got %v", err)
	}
	if _, err := DeviceCreator(DeviceAccel); !errors.As(err, &devErr) {
		t.Errorf("expected DeviceError but got %v", err)
	}

	RegisterAccelerator(anyvec64.DefaultCreator{})
	defer RegisterAccelerator(nil)
	if c, err := DeviceCreator(DeviceAccel); err != nil || c != (anyvec64.DefaultCreator{}) {
		t.Errorf("unexpected accelerator: %v %v", c, err)
	}
}

func TestToDevice(t *testing.T) {
	v := anyvec32.MakeVectorData([]float32{1, 2, 3})
	c := anyvec64.DefaultCreator{}
	moved := toDevice(v, c)
	if data, ok := moved.Data().([]float64); !ok || data[2] != 3 {
		t.Errorf("unexpected data: %v", moved.Data())
	}
	if toDevice(moved, c) != moved {
		t.Error("expected vector on the same device to be reused")
	}
	if toDevice(v, nil) != v {
		t.Error("expected nil device to keep the vector")
	}
}

func TestSameDevice(t *testing.T) {
	if !sameDevice(anyvec64.DefaultCreator{}, anyvec64.CurrentCreator()) {
		t.Error("float64 creators should match")
	}
	if sameDevice(anyvec64.DefaultCreator{}, anyvec32.CurrentCreator()) {
		t.Error("float32 and float64 creators should differ")
	}
}
