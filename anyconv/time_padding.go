package anyconv

import (
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p TimePadding
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializeTimePadding)
}

// TimePadding adds zero frames to both ends of the time
// axis of every example.
type TimePadding struct {
	Before int
	After  int

	mapperLock sync.Mutex
	mappers    map[paddingKey]anyvec.Mapper
}

type paddingKey struct {
	batch int
	shape Shape
}

// NewTimePadding creates a TimePadding which adds the
// same number of frames to both ends.
func NewTimePadding(frames int) *TimePadding {
	return &TimePadding{Before: frames, After: frames}
}

// DeserializeTimePadding deserializes a TimePadding.
func DeserializeTimePadding(d []byte) (*TimePadding, error) {
	var before, after serializer.Int
	if err := serializer.DeserializeAny(d, &before, &after); err != nil {
		return nil, essentials.AddCtx("deserialize TimePadding", err)
	}
	return &TimePadding{Before: int(before), After: int(after)}, nil
}

// OutShape returns the padded shape.
func (p *TimePadding) OutShape(in Shape) Shape {
	in.Time += p.Before + p.After
	return in
}

// Apply pads a batch.
func (p *TimePadding) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	if in.Output().Len() != batch*shape.Size() {
		panic("incorrect input size")
	}
	if p.Before == 0 && p.After == 0 {
		return in
	}
	mapper := p.mapper(in.Output().Creator(), batch, shape)
	out := in.Output().Creator().MakeVector(mapper.InSize())
	mapper.MapTranspose(in.Output(), out)
	return &timePaddingRes{
		In:     in,
		Mapper: mapper,
		OutVec: out,
	}
}

// SerializerType returns the unique ID used to serialize
// a TimePadding with the serializer package.
func (p *TimePadding) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyconv.TimePadding"
}

// Serialize serializes the layer.
func (p *TimePadding) Serialize() ([]byte, error) {
	return serializer.SerializeAny(serializer.Int(p.Before), serializer.Int(p.After))
}

// mapper returns a mapper from a padded batch to the
// unpadded batch; its transpose performs the padding.
func (p *TimePadding) mapper(c anyvec.Creator, batch int, shape Shape) anyvec.Mapper {
	p.mapperLock.Lock()
	defer p.mapperLock.Unlock()
	key := paddingKey{batch: batch, shape: shape}
	if m, ok := p.mappers[key]; ok && m.Creator() == c {
		return m
	}
	if p.mappers == nil {
		p.mappers = map[paddingKey]anyvec.Mapper{}
	}

	frameSize := shape.FrameSize()
	outShape := p.OutShape(shape)
	table := make([]int, 0, batch*shape.Size())
	for b := 0; b < batch; b++ {
		exampleStart := b * outShape.Size()
		for t := 0; t < shape.Time; t++ {
			frameStart := exampleStart + (t+p.Before)*frameSize
			for i := 0; i < frameSize; i++ {
				table = append(table, frameStart+i)
			}
		}
	}
	m := c.MakeMapper(batch*outShape.Size(), table)
	p.mappers[key] = m
	return m
}

type timePaddingRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func (t *timePaddingRes) Output() anyvec.Vector {
	return t.OutVec
}

func (t *timePaddingRes) Vars() anydiff.VarSet {
	return t.In.Vars()
}

func (t *timePaddingRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	down := u.Creator().MakeVector(t.Mapper.OutSize())
	t.Mapper.Map(u, down)
	t.In.Propagate(down, g)
}
