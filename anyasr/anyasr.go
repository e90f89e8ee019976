// Package anyasr wraps a convolutional-recurrent encoder
// into a CTC speech recognizer.
//
// A Collator turns raw feature sequences and labels into
// a Batch.
// A Model runs batches through its Encoder and a
// projection onto the classes plus a blank, and either
// scores them with the CTC loss or decodes them into
// label sequences.
package anyasr

import "fmt"

// A Class is an output class of a model.
// Real classes are numbered from 0; Blank is the CTC
// blank.
type Class int

// Blank is the CTC blank symbol.
const Blank Class = -1

// String returns "blank" or the class index.
func (c Class) String() string {
	if c == Blank {
		return "blank"
	}
	return fmt.Sprintf("class %d", int(c))
}

// A ClassSpace maps classes to positions in a model's
// output vectors.
// The blank comes after the OutputDim real classes.
type ClassSpace struct {
	OutputDim int
}

// Size is the number of outputs per frame.
func (c ClassSpace) Size() int {
	return c.OutputDim + 1
}

// BlankIndex is the position of the blank.
func (c ClassSpace) BlankIndex() int {
	return c.OutputDim
}

// Valid checks if a class belongs to the space.
func (c ClassSpace) Valid(cl Class) bool {
	return cl == Blank || (cl >= 0 && int(cl) < c.OutputDim)
}

// Position returns the output index of a class.
// It panics for invalid classes.
func (c ClassSpace) Position(cl Class) int {
	if !c.Valid(cl) {
		panic(fmt.Sprintf("%v not in a space of %d classes", cl, c.OutputDim))
	}
	if cl == Blank {
		return c.BlankIndex()
	}
	return int(cl)
}

// Class returns the class at an output index.
// It panics for indices outside of [0, Size()).
func (c ClassSpace) Class(pos int) Class {
	if pos < 0 || pos > c.OutputDim {
		panic(fmt.Sprintf("position %d out of range [0, %d]", pos, c.OutputDim))
	}
	if pos == c.OutputDim {
		return Blank
	}
	return Class(pos)
}

// Labels converts output positions into real class
// labels, dropping blanks.
// It panics for positions outside of [0, Size()).
func (c ClassSpace) Labels(positions []int) []int {
	res := []int{}
	for _, pos := range positions {
		if cl := c.Class(pos); cl != Blank {
			res = append(res, int(cl))
		}
	}
	return res
}
