// Package anyctc implements Connectionist Temporal
// Classification (CTC).
// For more information on CTC, see this paper:
// http://www.cs.toronto.edu/~graves/icml_2006.pdf.
//
// The package provides the CTC loss, both for packed
// anyseq.Seq batches (Cost) and for time-major tensors
// with explicit length vectors (Loss), along with several
// decoders for turning per-timestep class probabilities
// into label sequences.
//
// The blank symbol is an explicit class index.
// Models in this module put it after the real classes.
package anyctc
