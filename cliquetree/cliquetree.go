// Package cliquetree builds and calibrates a CliqueTree — a chain of
// per-position FactorTables produced by forward-backward message
// passing over a linear-chain CRF (spec §4.4) — and exposes it as a
// SequenceModel for the decode package's search algorithms.
package cliquetree

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/crftag/factortable"
	"github.com/happyhackingspace/crftag/label"
)

// Tree is a calibrated chain of FactorTables, one per document
// position, plus the bookkeeping needed to answer SequenceModel
// queries over the extended position range [0, N+W-2].
type Tree struct {
	factors      []*factortable.Table // length N, each width W
	numClasses   int
	window       int // W
	backgroundID int
	z            float64 // log Z, shared by every calibrated factor
}

// Build assembles the uncalibrated per-position factor tables from a
// weight table and an encoded document, then calibrates them in
// place. data[j][o] lists the ids of the features active at position
// j for clique order o; weights[f][k] is the weight of feature f
// (global feature id) for label-tuple id k, where k indexes the tuple
// space of f's own order (every feature active at a given order
// shares that order's tuple-id space).
func Build(weights [][]float64, data [][][]int, labelIndices *label.IndexSet, numClasses, backgroundID int) (*Tree, error) {
	n := len(data)
	window := labelIndices.Window()
	factors := make([]*factortable.Table, n)
	for j := 0; j < n; j++ {
		factors[j] = assembleFactor(weights, data[j], labelIndices, numClasses, window)
		// At position j < W-1 the leading W-1-j labels of the factor lie
		// in the left padding, which may only hold the background class.
		for i := 0; j < window-1 && i < factors[j].Size(); i++ {
			tup := label.Unpack(i, window, numClasses)
			for p := 0; p < window-1-j; p++ {
				if tup[p] != backgroundID {
					factors[j].Set(tup, math.Inf(-1))
					break
				}
			}
		}
	}

	calibrate(factors)

	tr := &Tree{
		factors:      factors,
		numClasses:   numClasses,
		window:       window,
		backgroundID: backgroundID,
	}
	if n > 0 {
		tr.z = factors[0].TotalMass()
	}

	for j, f := range factors {
		if f.ContainsNaN() {
			return nil, fmt.Errorf("cliquetree: NaN in factor table at position %d", j)
		}
	}
	return tr, nil
}

// assembleFactor builds the full W-wide factor for one position by
// summing active-feature weights at each order and embedding the
// smaller-order tables into the full window via multiplyInEnd, per
// spec §4.4's per-position factor assembly.
func assembleFactor(weights [][]float64, datumByOrder [][]int, labelIndices *label.IndexSet, numClasses, window int) *factortable.Table {
	var acc *factortable.Table
	for o := 0; o < window; o++ {
		ti := labelIndices.At(o)
		ft := factortable.New(numClasses, o+1)
		active := datumByOrder[o]
		for k := 0; k < ti.Size(); k++ {
			var sum float64
			for _, f := range active {
				sum += weights[f][k]
			}
			ft.Set(ti.Get(k), sum)
		}
		if acc == nil {
			acc = ft
		} else {
			ft.MultiplyInEnd(acc)
			acc = ft
		}
	}
	return acc
}

// calibrate runs the forward and backward message-passing sweeps of
// spec §4.4 over factors in place.
func calibrate(factors []*factortable.Table) {
	n := len(factors)
	if n == 0 {
		return
	}
	messages := make([]*factortable.Table, n)
	for j := 1; j < n; j++ {
		messages[j-1] = factors[j-1].SumOutFront()
		factors[j].MultiplyInFront(messages[j-1])
	}
	for j := n - 2; j >= 0; j-- {
		s := factors[j+1].SumOutEnd()
		s.DivideBy(messages[j])
		factors[j].MultiplyInEnd(s)
	}
}

// NumPositions returns N, the real document length.
func (tr *Tree) NumPositions() int { return len(tr.factors) }

// NumClasses returns C.
func (tr *Tree) NumClasses() int { return tr.numClasses }

// Window returns W.
func (tr *Tree) Window() int { return tr.window }

// BackgroundID returns the background class id used for left padding.
func (tr *Tree) BackgroundID() int { return tr.backgroundID }

// LogZ returns the calibrated log partition function.
func (tr *Tree) LogZ() float64 { return tr.z }

// --- SequenceModel contract (spec §4.5) ---

// Length returns the extended length N+W-1: the real document length
// plus W-1 left-padding slots reserved for background context.
func (tr *Tree) Length() int { return tr.NumPositions() + tr.LeftWindow() }

// LeftWindow returns W-1.
func (tr *Tree) LeftWindow() int { return tr.window - 1 }

// RightWindow is always 0: CRF cliques never look beyond the current
// position.
func (tr *Tree) RightWindow() int { return 0 }

// PossibleValues returns the allowed class ids at an extended
// position. Positions in the left-padding region may only be
// background.
func (tr *Tree) PossibleValues(pos int) []int {
	if pos < tr.LeftWindow() {
		return []int{tr.backgroundID}
	}
	out := make([]int, tr.numClasses)
	for i := range out {
		out[i] = i
	}
	return out
}

// ScoresOf returns, for every class y, the unnormalized log-prob of
// seq[pos]=y given the rest of seq — the pointwise sum of "this given
// previous" and "next given this" described in spec §4.5.
func (tr *Tree) ScoresOf(seq []int, pos int) []float64 {
	lw := tr.LeftWindow()
	out := make([]float64, tr.numClasses)
	if pos < lw {
		for y := range out {
			out[y] = math.Inf(-1)
		}
		out[tr.backgroundID] = 0
		return out
	}

	j := pos - lw
	n := tr.NumPositions()

	prev := make(label.Tuple, lw+1)
	for i := 0; i < lw; i++ {
		prev[i] = seq[pos-lw+i]
	}
	thisGivenPrev := make([]float64, tr.numClasses)
	for y := 0; y < tr.numClasses; y++ {
		prev[lw] = y
		thisGivenPrev[y] = tr.factors[j].UnnormalizedLogProb(prev)
	}

	nextLen := lw
	if j+nextLen >= n {
		nextLen = n - 1 - j
	}
	nextGivenThis := make([]float64, tr.numClasses)
	if nextLen == 0 {
		// No following position to condition on: additive identity
		// (log 1 = 0) for every class.
	} else {
		ft := tr.factors[j+nextLen]
		for ft.WindowSize() > nextLen+1 {
			ft = ft.SumOutFront()
		}
		next := make(label.Tuple, nextLen+1)
		for i := 0; i < nextLen; i++ {
			next[i+1] = seq[pos+1+i]
		}
		for y := 0; y < tr.numClasses; y++ {
			next[0] = y
			nextGivenThis[y] = ft.UnnormalizedLogProb(next)
		}
	}

	for y := range out {
		out[y] = thisGivenPrev[y] + nextGivenThis[y]
	}
	return out
}

// ScoreOf returns the full-sequence log-probability of seq (an
// extended-length label sequence with the first LeftWindow() entries
// equal to background), via the chain rule over conditional-given-
// previous factors.
func (tr *Tree) ScoreOf(seq []int) float64 {
	lw := tr.LeftWindow()
	n := tr.NumPositions()
	var logProb float64
	given := make(label.Tuple, lw)
	copy(given, seq[:lw])
	for j := 0; j < n; j++ {
		y := seq[lw+j]
		logProb += tr.CondLogProbGivenPrevious(j, given, y)
		if lw > 0 {
			given = append(given[1:], y)
		}
	}
	return logProb
}

// CondLogProbGivenPrevious returns log p(y | prev) at real position j,
// where prev may be shorter or longer than W-1: a shorter prev is
// answered from the factor marginalized down to len(prev)+1 labels, a
// longer one is cut to its last W-1 labels. The chain-rule walks in
// ScoreOf and in the objective always pass exactly W-1 labels.
func (tr *Tree) CondLogProbGivenPrevious(j int, prev label.Tuple, y int) float64 {
	ft := tr.factors[j]
	want := len(prev) + 1
	for ft.WindowSize() > want {
		ft = ft.SumOutFront()
	}
	if len(prev) > ft.WindowSize()-1 {
		prev = prev.Suffix(ft.WindowSize() - 1)
	}
	return ft.ConditionalLogProbGivenPrevious(prev, y)
}

// FactorAtOrder returns the factor table at real position j,
// marginalized down to width order+1 by repeated SumOutFront. Its
// entries are the joint log-mass of the order+1 labels ending at j —
// used by the objective package to compute expected feature counts
// per clique order.
func (tr *Tree) FactorAtOrder(j, order int) *factortable.Table {
	ft := tr.factors[j]
	for ft.WindowSize() > order+1 {
		ft = ft.SumOutFront()
	}
	return ft
}

// LogProb returns the normalized marginal log-probability that
// position j (real, 0-based) takes class y.
func (tr *Tree) LogProb(j, y int) float64 {
	return tr.FactorAtOrder(j, 0).LogProb(label.Tuple{y})
}

// Prob returns the normalized marginal probability that position j
// takes class y.
func (tr *Tree) Prob(j, y int) float64 {
	return math.Exp(tr.LogProb(j, y))
}

// TransitionScore returns log p(y | prevWindow) at an extended
// position, where prevWindow holds the LeftWindow() labels
// immediately preceding pos. Positions in the left-padding region
// (pos < LeftWindow()) score 0 unconditionally — PossibleValues
// already restricts them to the single background value, so there is
// nothing to score.
//
// Unlike ScoresOf (the full single-site conditional used by the Gibbs
// sampler, which also looks ahead to labels after pos), TransitionScore
// only looks backward — the forward-only chain-rule term a left-to-
// right search (Viterbi, beam, k-best) can accumulate without having
// decided anything beyond pos yet.
func (tr *Tree) TransitionScore(pos int, prevWindow []int, y int) float64 {
	lw := tr.LeftWindow()
	if pos < lw {
		return 0
	}
	return tr.CondLogProbGivenPrevious(pos-lw, label.Tuple(prevWindow), y)
}

// CliqueProb returns the normalized marginal probability that the
// clique of the given order ending at real position j takes the
// label tuple tup (len(tup) == order+1) — used by the objective
// package to accumulate expected feature counts per clique order.
func (tr *Tree) CliqueProb(j, order int, tup label.Tuple) float64 {
	return math.Exp(tr.FactorAtOrder(j, order).LogProb(tup))
}
