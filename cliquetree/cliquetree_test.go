package cliquetree

import (
	"math"
	"testing"

	"github.com/happyhackingspace/crftag/label"
)

// toyModel builds a tiny 2-class, window-2 chain of 3 positions with
// hand-picked feature weights, exercising Build end to end.
func toyModel() (weights [][]float64, data [][][]int, labelIndices *label.IndexSet) {
	const numClasses = 2
	labelIndices = label.NewIndexSet(2, numClasses)
	labelIndices.BuildAll()

	// feature 0: order 0 (unary), weight per class id
	// feature 1: order 1 (transition), weight per (prev,cur) tuple id
	weights = [][]float64{
		{0.5, -0.3}, // f0: order-0 weights over class ids 0,1
		{0.1, 0.2, -0.4, 0.3}, // f1: order-1 weights over 4 tuples (2x2)
	}

	mk := func() [][]int {
		return [][]int{{0}, {1}}
	}
	data = [][][]int{mk(), mk(), mk()}
	return
}

func TestBuildCalibratesSharedTotalMass(t *testing.T) {
	weights, data, labelIndices := toyModel()
	tr, err := Build(weights, data, labelIndices, 2, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	z0 := tr.factors[0].TotalMass()
	for j, f := range tr.factors {
		if got := f.TotalMass(); math.Abs(got-z0) > 1e-9 {
			t.Errorf("factor[%d].TotalMass() = %v, want %v", j, got, z0)
		}
	}
	if math.Abs(tr.LogZ()-z0) > 1e-9 {
		t.Errorf("LogZ() = %v, want %v", tr.LogZ(), z0)
	}
}

func TestSequenceModelContract(t *testing.T) {
	weights, data, labelIndices := toyModel()
	tr, err := Build(weights, data, labelIndices, 2, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tr.LeftWindow() != 1 {
		t.Fatalf("LeftWindow() = %d, want 1", tr.LeftWindow())
	}
	if tr.RightWindow() != 0 {
		t.Fatalf("RightWindow() = %d, want 0", tr.RightWindow())
	}
	wantLen := tr.NumPositions() + tr.LeftWindow()
	if tr.Length() != wantLen {
		t.Fatalf("Length() = %d, want %d", tr.Length(), wantLen)
	}
	if got := tr.PossibleValues(0); len(got) != 1 || got[0] != tr.BackgroundID() {
		t.Fatalf("PossibleValues(0) = %v, want [%d]", got, tr.BackgroundID())
	}
	if got := tr.PossibleValues(tr.LeftWindow()); len(got) != 2 {
		t.Fatalf("PossibleValues(leftWindow) = %v, want len 2", got)
	}
}

func TestScoreOfMatchesMarginalChainRule(t *testing.T) {
	weights, data, labelIndices := toyModel()
	tr, err := Build(weights, data, labelIndices, 2, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// seq: background padding (1 slot, window-1) + labels [0,1,0]
	seq := []int{tr.BackgroundID(), 0, 1, 0}
	score := tr.ScoreOf(seq)

	// brute force: sum log p(y_j | y_{j-1}) via the calibrated factors directly
	want := tr.CondLogProbGivenPrevious(0, label.Tuple{tr.BackgroundID()}, 0)
	want += tr.CondLogProbGivenPrevious(1, label.Tuple{0}, 1)
	want += tr.CondLogProbGivenPrevious(2, label.Tuple{1}, 0)

	if math.Abs(score-want) > 1e-9 {
		t.Errorf("ScoreOf = %v, want %v", score, want)
	}
}

func TestScoresOfReturnsOneNonNaNScorePerClass(t *testing.T) {
	weights, data, labelIndices := toyModel()
	tr, err := Build(weights, data, labelIndices, 2, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	seq := []int{tr.BackgroundID(), 0, 1, 0}
	// pos 1 (extended) = real position 0
	scores := tr.ScoresOf(seq, 1)
	if len(scores) != 2 {
		t.Fatalf("ScoresOf returned %d scores, want 2", len(scores))
	}
	for _, s := range scores {
		if math.IsNaN(s) {
			t.Fatalf("ScoresOf produced NaN: %v", scores)
		}
	}
}

func TestPaddingPositionScoresOnlyBackground(t *testing.T) {
	weights, data, labelIndices := toyModel()
	tr, err := Build(weights, data, labelIndices, 2, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	seq := []int{tr.BackgroundID(), 0, 1, 0}
	scores := tr.ScoresOf(seq, 0)
	for y, s := range scores {
		if y == tr.BackgroundID() {
			if s != 0 {
				t.Errorf("background score = %v, want 0", s)
			}
		} else if !math.IsInf(s, -1) {
			t.Errorf("non-background score at padding = %v, want -Inf", s)
		}
	}
}

func TestFactorAtOrderMarginalSumsToOne(t *testing.T) {
	weights, data, labelIndices := toyModel()
	tr, err := Build(weights, data, labelIndices, 2, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ft := tr.FactorAtOrder(1, 0)
	sum := 0.0
	for y := 0; y < 2; y++ {
		sum += math.Exp(ft.LogProb(label.Tuple{y}))
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("order-0 marginal at position 1 sums to %v, want 1", sum)
	}
}
