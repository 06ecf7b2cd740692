// Package objective implements CRFLogConditionalObjective, the
// negative-log-likelihood objective and gradient a CRF trainer
// minimizes (spec §4.6), including batch and mini-batch evaluation and
// Quadratic/Huber/Quartic regularization.
package objective

import (
	"fmt"
	"math"

	"github.com/happyhackingspace/crftag/cliquetree"
	"github.com/happyhackingspace/crftag/label"
)

// Regularizer selects the prior term added to the negative
// log-likelihood.
type Regularizer int

const (
	NoPrior Regularizer = iota
	Quadratic
	Huber
	Quartic
)

// Document is one training sequence: data[i][o] lists the global
// feature ids active at position i for clique order o; labels[i] is
// the gold class id at position i.
type Document struct {
	Data   [][][]int
	Labels []int
}

// CRFObjective is the negative log conditional likelihood of a set of
// labeled documents under a linear-chain CRF, differentiable in the
// flattened weight vector x.
type CRFObjective struct {
	docs          []Document
	labelIndices  *label.IndexSet
	numClasses    int
	featureOrder  []int // featureOrder[f] = clique order feature f belongs to
	backgroundID  int
	window        int
	prior         Regularizer
	sigma         float64
	epsilon       float64
	ehat          [][]float64 // empirical counts [feature][tupleID]
	domainDim     int
	lastX         []float64
	value         float64
	gradient      []float64
}

// New builds a CRFObjective over docs and precomputes empirical
// feature counts.
func New(docs []Document, labelIndices *label.IndexSet, numClasses int, featureOrder []int, backgroundID, window int, prior Regularizer, sigma, epsilon float64) *CRFObjective {
	o := &CRFObjective{
		docs:         docs,
		labelIndices: labelIndices,
		numClasses:   numClasses,
		featureOrder: featureOrder,
		backgroundID: backgroundID,
		window:       window,
		prior:        prior,
		sigma:        sigma,
		epsilon:      epsilon,
	}
	o.domainDim = o.computeDomainDimension()
	o.ehat = o.empiricalCounts()
	return o
}

// DomainDimension returns D = Σ_f |θ[f]|.
func (o *CRFObjective) DomainDimension() int { return o.domainDim }

func (o *CRFObjective) computeDomainDimension() int {
	d := 0
	for _, order := range o.featureOrder {
		d += o.labelIndices.At(order).Size()
	}
	return d
}

// empty2D allocates a ragged [feature][tupleID] array matching the
// shape of the weight table.
func (o *CRFObjective) empty2D() [][]float64 {
	out := make([][]float64, len(o.featureOrder))
	for f, order := range o.featureOrder {
		out[f] = make([]float64, o.labelIndices.At(order).Size())
	}
	return out
}

// Weights reshapes the flat weight vector x into [feature][tupleID]
// form, the layout cliquetree.Build expects — used by callers (the
// crfmodel façade) that need the trained weight table after
// optimization finishes.
func (o *CRFObjective) Weights(x []float64) [][]float64 {
	return o.to2D(x)
}

// to2D reshapes the flat weight vector x into [feature][tupleID] form.
func (o *CRFObjective) to2D(x []float64) [][]float64 {
	out := make([][]float64, len(o.featureOrder))
	idx := 0
	for f, order := range o.featureOrder {
		n := o.labelIndices.At(order).Size()
		out[f] = x[idx : idx+n]
		idx += n
	}
	return out
}

// to1D flattens a [feature][tupleID] array into domain-vector order,
// matching to2D's layout.
func (o *CRFObjective) to1D(w [][]float64) []float64 {
	out := make([]float64, o.domainDim)
	idx := 0
	for _, row := range w {
		copy(out[idx:], row)
		idx += len(row)
	}
	return out
}

// empiricalCounts walks every document's gold labels, padding the
// left context with background, and tallies how often each feature
// co-occurs with each clique-order label tuple — spec §4.6's Êhat.
func (o *CRFObjective) empiricalCounts() [][]float64 {
	ehat := o.empty2D()
	windowLabels := make([]int, o.window)
	for _, doc := range o.docs {
		for i := range windowLabels {
			windowLabels[i] = o.backgroundID
		}
		for i, datumByOrder := range doc.Data {
			copy(windowLabels, windowLabels[1:])
			windowLabels[o.window-1] = doc.Labels[i]
			for j, active := range datumByOrder {
				cliqueLabel := label.Tuple(append([]int(nil), windowLabels[o.window-1-j:]...))
				k, ok := o.labelIndices.At(j).IndexOf(cliqueLabel)
				if !ok {
					continue
				}
				for _, f := range active {
					ehat[f][k]++
				}
			}
		}
	}
	return ehat
}

// ValueAndGradient returns the objective value and gradient at x,
// evaluated over every document (the batch objective of spec §4.6).
func (o *CRFObjective) ValueAndGradient(x []float64) (float64, []float64, error) {
	return o.evaluate(x, nil, 1.0)
}

// StochasticValueAndGradient returns the objective value and gradient
// at x restricted to the documents named by batch, with the
// regularizer and empirical-count terms scaled by
// len(batch)/len(docs) to keep the mini-batch gradient an unbiased
// estimator of the full-batch one.
func (o *CRFObjective) StochasticValueAndGradient(x []float64, batch []int) (float64, []float64, error) {
	scale := float64(len(batch)) / float64(len(o.docs))
	return o.evaluate(x, batch, scale)
}

func (o *CRFObjective) evaluate(x []float64, batch []int, batchScale float64) (float64, []float64, error) {
	weights := o.to2D(x)
	e := o.empty2D()

	indices := batch
	if indices == nil {
		indices = make([]int, len(o.docs))
		for i := range indices {
			indices[i] = i
		}
	}

	var prob float64
	for _, m := range indices {
		doc := o.docs[m]
		tr, err := cliquetree.Build(weights, doc.Data, o.labelIndices, o.numClasses, o.backgroundID)
		if err != nil {
			return 0, nil, fmt.Errorf("objective: %w", err)
		}

		given := make(label.Tuple, o.window-1)
		for i := range given {
			given[i] = o.backgroundID
		}
		for i, y := range doc.Labels {
			prob += tr.CondLogProbGivenPrevious(i, given, y)
			if len(given) > 0 {
				given = append(given[1:], y)
			}
		}

		for i, datumByOrder := range doc.Data {
			for j, active := range datumByOrder {
				labelIndex := o.labelIndices.At(j)
				for k := 0; k < labelIndex.Size(); k++ {
					p := tr.CliqueProb(i, j, labelIndex.Get(k))
					for _, f := range active {
						e[f][k] += p
					}
				}
			}
		}
	}

	if math.IsNaN(prob) {
		return 0, nil, fmt.Errorf("objective: got NaN for sequence log-probability")
	}

	value := -prob
	derivative := make([]float64, o.domainDim)
	idx := 0
	for f := range e {
		for k := range e[f] {
			derivative[idx] = e[f][k] - batchScale*o.ehat[f][k]
			idx++
		}
	}

	o.addRegularizer(x, &value, derivative, batchScale)
	return value, derivative, nil
}

// addRegularizer adds the prior's contribution to value and
// derivative, scaled by batchScale so that a mini-batch evaluation's
// regularizer term matches its share of the full-batch one.
func (o *CRFObjective) addRegularizer(x []float64, value *float64, derivative []float64, batchScale float64) {
	switch o.prior {
	case Quadratic:
		sigmaSq := o.sigma * o.sigma
		for i, w := range x {
			*value += batchScale * w * w / 2.0 / sigmaSq
			derivative[i] += batchScale * w / sigmaSq
		}
	case Huber:
		sigmaSq := o.sigma * o.sigma
		for i, w := range x {
			wabs := math.Abs(w)
			if wabs < o.epsilon {
				*value += batchScale * w * w / 2.0 / o.epsilon / sigmaSq
				derivative[i] += batchScale * w / o.epsilon / sigmaSq
			} else {
				*value += batchScale * (wabs - o.epsilon/2) / sigmaSq
				sign := 1.0
				if w < 0 {
					sign = -1.0
				}
				derivative[i] += batchScale * sign / sigmaSq
			}
		}
	case Quartic:
		sigmaQu := o.sigma * o.sigma * o.sigma * o.sigma
		for i, w := range x {
			*value += batchScale * w * w * w * w / 2.0 / sigmaQu
			derivative[i] += batchScale * w / sigmaQu
		}
	}
}

// Value implements optimize.DifferentiableFunction.
func (o *CRFObjective) Value(x []float64) float64 {
	o.ensure(x)
	return o.value
}

// Gradient implements optimize.DifferentiableFunction.
func (o *CRFObjective) Gradient(x []float64) []float64 {
	o.ensure(x)
	return o.gradient
}

// DataDimension returns the number of training documents, the unit a
// stochastic minimizer's batch size is measured in.
func (o *CRFObjective) DataDimension() int { return len(o.docs) }

// StochasticGradient returns the gradient at x restricted to the
// given batch of document indices, for the optimize package's
// stochastic minimizers.
func (o *CRFObjective) StochasticGradient(x []float64, batch []int) []float64 {
	_, grad, err := o.StochasticValueAndGradient(x, batch)
	if err != nil {
		panic(err)
	}
	return grad
}

// ensure caches the value/gradient pair for the most recently
// evaluated x, matching the teacher's and the original
// AbstractCachingDiffFunction's avoid-recompute idiom.
func (o *CRFObjective) ensure(x []float64) {
	if sameSlice(o.lastX, x) {
		return
	}
	value, grad, err := o.ValueAndGradient(x)
	if err != nil {
		// A NaN log-probability is a programming error (bad weights,
		// degenerate features) that the caller cannot recover from
		// mid-optimization; surface it loudly rather than silently
		// returning a corrupt gradient.
		panic(err)
	}
	o.lastX = append([]float64(nil), x...)
	o.value = value
	o.gradient = grad
}

func sameSlice(a, b []float64) bool {
	if a == nil || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
