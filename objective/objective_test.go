package objective

import (
	"math"
	"testing"

	"github.com/happyhackingspace/crftag/label"
)

// toyDocs builds a single 2-class, window-2, 3-position document with
// one order-0 feature and one order-1 feature active at every
// position, background id 0.
func toyDocs() ([]Document, *label.IndexSet, []int) {
	labelIndices := label.NewIndexSet(2, 2)
	labelIndices.BuildAll()
	featureOrder := []int{0, 1} // feature 0 -> order 0, feature 1 -> order 1

	doc := Document{
		Data: [][][]int{
			{{0}, {1}},
			{{0}, {1}},
			{{0}, {1}},
		},
		Labels: []int{0, 1, 0},
	}
	return []Document{doc}, labelIndices, featureOrder
}

func TestDomainDimension(t *testing.T) {
	docs, labelIndices, featureOrder := toyDocs()
	o := New(docs, labelIndices, 2, featureOrder, 0, 2, NoPrior, 1.0, 0.1)
	// feature 0 -> order 0 (size 2), feature 1 -> order 1 (size 4)
	if got := o.DomainDimension(); got != 6 {
		t.Fatalf("DomainDimension() = %d, want 6", got)
	}
}

func TestValueAndGradientFinite(t *testing.T) {
	docs, labelIndices, featureOrder := toyDocs()
	o := New(docs, labelIndices, 2, featureOrder, 0, 2, NoPrior, 1.0, 0.1)
	x := make([]float64, o.DomainDimension())
	value, grad, err := o.ValueAndGradient(x)
	if err != nil {
		t.Fatalf("ValueAndGradient: %v", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.Fatalf("value = %v, want finite", value)
	}
	for i, g := range grad {
		if math.IsNaN(g) {
			t.Fatalf("gradient[%d] = NaN", i)
		}
	}
}

// TestGradientMatchesFiniteDifference checks the analytic gradient
// returned by ValueAndGradient against a central finite-difference
// approximation at a non-trivial point, so a sign or indexing bug in
// evaluate's derivative accumulation would show up as a mismatch
// instead of silently passing a finiteness-only check.
func TestGradientMatchesFiniteDifference(t *testing.T) {
	docs, labelIndices, featureOrder := toyDocs()
	o := New(docs, labelIndices, 2, featureOrder, 0, 2, Quadratic, 1.0, 0.1)

	x := make([]float64, o.DomainDimension())
	for i := range x {
		x[i] = 0.1 * float64(i+1)
	}

	_, grad, err := o.ValueAndGradient(x)
	if err != nil {
		t.Fatalf("ValueAndGradient: %v", err)
	}

	const h = 1e-5
	for i := range x {
		xPlus := append([]float64(nil), x...)
		xPlus[i] += h
		vPlus, _, err := o.ValueAndGradient(xPlus)
		if err != nil {
			t.Fatalf("ValueAndGradient(x+h): %v", err)
		}

		xMinus := append([]float64(nil), x...)
		xMinus[i] -= h
		vMinus, _, err := o.ValueAndGradient(xMinus)
		if err != nil {
			t.Fatalf("ValueAndGradient(x-h): %v", err)
		}

		numeric := (vPlus - vMinus) / (2 * h)
		if diff := math.Abs(numeric - grad[i]); diff > 1e-4 {
			t.Errorf("gradient[%d] = %v, finite difference = %v (diff %v)", i, grad[i], numeric, diff)
		}
	}
}

func TestQuadraticRegularizerIncreasesValueAwayFromZero(t *testing.T) {
	docs, labelIndices, featureOrder := toyDocs()
	o := New(docs, labelIndices, 2, featureOrder, 0, 2, Quadratic, 1.0, 0.1)
	zero := make([]float64, o.DomainDimension())
	nonzero := make([]float64, o.DomainDimension())
	for i := range nonzero {
		nonzero[i] = 2.0
	}
	vZero, _, err := o.ValueAndGradient(zero)
	if err != nil {
		t.Fatalf("ValueAndGradient(zero): %v", err)
	}
	vNonzero, _, err := o.ValueAndGradient(nonzero)
	if err != nil {
		t.Fatalf("ValueAndGradient(nonzero): %v", err)
	}
	if vNonzero <= vZero {
		t.Errorf("expected quadratic penalty to raise value away from 0: vZero=%v vNonzero=%v", vZero, vNonzero)
	}
}

func TestStochasticGradientMatchesBatchOnFullBatch(t *testing.T) {
	docs, labelIndices, featureOrder := toyDocs()
	// duplicate the document so a "batch" of both indices equals the
	// full dataset and should reproduce the batch gradient exactly.
	docs = append(docs, docs[0])
	o := New(docs, labelIndices, 2, featureOrder, 0, 2, Quadratic, 1.0, 0.1)
	x := make([]float64, o.DomainDimension())
	for i := range x {
		x[i] = 0.3
	}
	vBatch, gBatch, err := o.ValueAndGradient(x)
	if err != nil {
		t.Fatalf("ValueAndGradient: %v", err)
	}
	vStoch, gStoch, err := o.StochasticValueAndGradient(x, []int{0, 1})
	if err != nil {
		t.Fatalf("StochasticValueAndGradient: %v", err)
	}
	if math.Abs(vBatch-vStoch) > 1e-9 {
		t.Errorf("stochastic value over full batch = %v, want %v", vStoch, vBatch)
	}
	for i := range gBatch {
		if math.Abs(gBatch[i]-gStoch[i]) > 1e-9 {
			t.Errorf("gradient[%d]: stochastic = %v, want %v", i, gStoch[i], gBatch[i])
		}
	}
}

func TestValueCachedForSameX(t *testing.T) {
	docs, labelIndices, featureOrder := toyDocs()
	o := New(docs, labelIndices, 2, featureOrder, 0, 2, NoPrior, 1.0, 0.1)
	x := make([]float64, o.DomainDimension())
	v1 := o.Value(x)
	g1 := o.Gradient(x)
	v2 := o.Value(x)
	if v1 != v2 {
		t.Errorf("cached Value changed: %v vs %v", v1, v2)
	}
	if len(g1) != o.DomainDimension() {
		t.Errorf("Gradient length = %d, want %d", len(g1), o.DomainDimension())
	}
}
