// Package factortable implements FactorTable, a dense log-space table
// of potentials over a W-position clique of class labels, as used by
// a linear-chain CRF's forward-backward calibration (spec §4.3).
//
// Storage is row-major with the leftmost (oldest) position most
// significant, matching label.Pack/Unpack. "Front" means the earliest
// positions of the window; "End" means the most recent (rightmost)
// position(s) — the one a CRF conditions a label on given its
// predecessors.
package factortable

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/crftag/label"
)

// Table is a dense array of log-potentials over numClasses^windowSize
// label tuples.
type Table struct {
	numClasses int
	windowSize int
	t          []float64
}

// New creates a Table of the given window size, initialized to -∞
// (zero potential) everywhere.
func New(numClasses, windowSize int) *Table {
	t := &Table{
		numClasses: numClasses,
		windowSize: windowSize,
		t:          make([]float64, intPow(numClasses, windowSize)),
	}
	for i := range t.t {
		t.t[i] = math.Inf(-1)
	}
	return t
}

// NumClasses returns C.
func (f *Table) NumClasses() int { return f.numClasses }

// WindowSize returns W.
func (f *Table) WindowSize() int { return f.windowSize }

// Size returns the number of table entries, C^W.
func (f *Table) Size() int { return len(f.t) }

// ContainsNaN reports whether any entry is NaN — a programming error
// that must trigger a fatal check at the end of calibration (spec
// §4.3's numerical rules).
func (f *Table) ContainsNaN() bool {
	for _, v := range f.t {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func (f *Table) index(t label.Tuple) int {
	return label.Pack(t, f.numClasses)
}

// indicesFront returns the full-table indices whose first len(prefix)
// positions equal prefix, enumerated over every value of the
// remaining (trailing) positions.
func (f *Table) indicesFront(prefix label.Tuple) []int {
	rest := f.windowSize - len(prefix)
	offset := intPow(f.numClasses, rest)
	start := label.Pack(prefix, f.numClasses) * offset
	out := make([]int, offset)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// indicesEnd returns the full-table indices whose last len(suffix)
// positions equal suffix, enumerated over every value of the
// remaining (leading) positions.
func (f *Table) indicesEnd(suffix label.Tuple) []int {
	offset := intPow(f.numClasses, len(suffix))
	base := label.Pack(suffix, f.numClasses)
	n := intPow(f.numClasses, f.windowSize-len(suffix))
	out := make([]int, n)
	idx := base
	for i := range out {
		out[i] = idx
		idx += offset
	}
	return out
}

// Get returns the log-potential of the full W-tuple label.
func (f *Table) Get(t label.Tuple) float64 {
	return f.t[f.index(t)]
}

// Set assigns the log-potential of the full W-tuple label.
func (f *Table) Set(t label.Tuple, v float64) {
	f.t[f.index(t)] = v
}

// IncrementValue adds v (linear-scale addition of the log-potential)
// to the entry for label t.
func (f *Table) IncrementValue(t label.Tuple, v float64) {
	f.t[f.index(t)] += v
}

// LogIncrementValue accumulates v into the entry for label t in
// log-space: t[label] = logAdd(t[label], v).
func (f *Table) LogIncrementValue(t label.Tuple, v float64) {
	i := f.index(t)
	f.t[i] = logAdd(f.t[i], v)
}

// TotalMass returns log Σ exp(t[i]) — log Z once the table is
// calibrated.
func (f *Table) TotalMass() float64 {
	return logSumExp(f.t)
}

// UnnormalizedLogProb returns the raw log-potential of t.
func (f *Table) UnnormalizedLogProb(t label.Tuple) float64 {
	return f.Get(t)
}

// LogProb returns the normalized log-probability of t.
func (f *Table) LogProb(t label.Tuple) float64 {
	return f.UnnormalizedLogProb(t) - f.TotalMass()
}

// UnnormalizedLogProbFront returns logΣexp over every full tuple whose
// leading len(prefix) positions equal prefix.
func (f *Table) UnnormalizedLogProbFront(prefix label.Tuple) float64 {
	return f.gather(f.indicesFront(prefix))
}

// LogProbFront is UnnormalizedLogProbFront normalized by TotalMass.
func (f *Table) LogProbFront(prefix label.Tuple) float64 {
	return f.UnnormalizedLogProbFront(prefix) - f.TotalMass()
}

// UnnormalizedLogProbEnd returns logΣexp over every full tuple whose
// trailing len(suffix) positions equal suffix.
func (f *Table) UnnormalizedLogProbEnd(suffix label.Tuple) float64 {
	return f.gather(f.indicesEnd(suffix))
}

// LogProbEnd is UnnormalizedLogProbEnd normalized by TotalMass.
func (f *Table) LogProbEnd(suffix label.Tuple) float64 {
	return f.UnnormalizedLogProbEnd(suffix) - f.TotalMass()
}

func (f *Table) gather(indices []int) float64 {
	masses := make([]float64, len(indices))
	for i, idx := range indices {
		masses[i] = f.t[idx]
	}
	return logSumExp(masses)
}

// ConditionalLogProbGivenPrevious returns log p(y | prev), where prev
// is the W-1 leading positions of the window and y fills the trailing
// position.
func (f *Table) ConditionalLogProbGivenPrevious(prev label.Tuple, y int) float64 {
	if len(prev) != f.windowSize-1 {
		panic(fmt.Sprintf("factortable: ConditionalLogProbGivenPrevious: len(prev)=%d, want %d", len(prev), f.windowSize-1))
	}
	z := f.gather(f.indicesFront(prev))
	full := append(append(label.Tuple(nil), prev...), y)
	return f.t[f.index(full)] - z
}

// ConditionalLogProbsGivenPrevious returns log p(y | prev) for every
// class y, normalized to sum to 1 in probability space.
func (f *Table) ConditionalLogProbsGivenPrevious(prev label.Tuple) []float64 {
	out := make([]float64, f.numClasses)
	full := append(append(label.Tuple(nil), prev...), 0)
	for y := 0; y < f.numClasses; y++ {
		full[len(full)-1] = y
		out[y] = f.t[f.index(full)]
	}
	logNormalize(out)
	return out
}

// ConditionalLogProbGivenNext returns log p(y | next), where next is
// the W-1 trailing positions of the window and y fills the leading
// position.
func (f *Table) ConditionalLogProbGivenNext(next label.Tuple, y int) float64 {
	if len(next) != f.windowSize-1 {
		panic(fmt.Sprintf("factortable: ConditionalLogProbGivenNext: len(next)=%d, want %d", len(next), f.windowSize-1))
	}
	z := f.gather(f.indicesEnd(next))
	full := append(append(label.Tuple{y}), next...)
	return f.t[f.index(full)] - z
}

// SumOutFront marginalizes out the leading position, returning a new
// Table of width W-1 over the remaining (trailing) positions.
func (f *Table) SumOutFront() *Table {
	out := New(f.numClasses, f.windowSize-1)
	mod := intPow(f.numClasses, f.windowSize-1)
	for i, v := range f.t {
		out.t[i%mod] = logAdd(out.t[i%mod], v)
	}
	return out
}

// SumOutEnd marginalizes out the trailing position, returning a new
// Table of width W-1 over the remaining (leading) positions.
func (f *Table) SumOutEnd() *Table {
	out := New(f.numClasses, f.windowSize-1)
	for i, v := range f.t {
		j := i / f.numClasses
		out.t[j] = logAdd(out.t[j], v)
	}
	return out
}

// MultiplyInFront adds other's value (broadcast over the trailing
// positions not covered by other) into every matching entry. other
// must have windowSize <= f.windowSize.
func (f *Table) MultiplyInFront(other *Table) {
	divisor := intPow(f.numClasses, f.windowSize-other.windowSize)
	for i := range f.t {
		f.t[i] += other.t[i/divisor]
	}
}

// MultiplyInEnd adds other's value (broadcast over the leading
// positions not covered by other) into every matching entry. other
// must have windowSize <= f.windowSize.
func (f *Table) MultiplyInEnd(other *Table) {
	divisor := intPow(f.numClasses, other.windowSize)
	for i := range f.t {
		f.t[i] += other.t[i%divisor]
	}
}

// DivideBy subtracts other's values entrywise from f's, in place.
// Both tables must have identical shape. -∞ − -∞ is treated as -∞.
func (f *Table) DivideBy(other *Table) {
	for i := range f.t {
		if !math.IsInf(f.t[i], -1) || !math.IsInf(other.t[i], -1) {
			f.t[i] -= other.t[i]
		}
	}
}

func logNormalize(xs []float64) {
	z := logSumExp(xs)
	for i := range xs {
		xs[i] -= z
	}
}
