package decode

import (
	"sort"

	"github.com/happyhackingspace/crftag/label"
)

// viterbiState is one frontier entry: the packed window of the last
// LeftWindow() labels, the best log-score reaching that window, and
// the sequence of labels (real positions only) that achieved it.
type viterbiState struct {
	window label.Tuple
	score  float64
	path   []int
}

// Viterbi runs the exact forward dynamic program of spec §4.5 over a
// ChainModel, returning the highest-scoring label sequence over the
// real (non-padding) positions, plus its score. Ties are broken by
// preferring the smallest class id, scanned in ascending order with a
// strict-greater-than update so the first (smallest) tied id wins; the
// frontier itself is kept as a slice sorted by packed window id, never
// iterated as a map, so ties are resolved the same way on every run.
func Viterbi(model ChainModel) ([]int, float64) {
	lw := model.LeftWindow()
	length := model.Length()
	numClasses := model.NumClasses()

	initWindow := make(label.Tuple, lw)
	for i := range initWindow {
		initWindow[i] = model.PossibleValues(i)[0]
	}
	frontier := []*viterbiState{{window: initWindow, score: 0, path: nil}}

	for pos := lw; pos < length; pos++ {
		next := make(map[int]*viterbiState)
		for _, st := range frontier {
			for _, y := range model.PossibleValues(pos) {
				score := st.score + model.TransitionScore(pos, st.window, y)
				var nw label.Tuple
				if lw > 0 {
					nw = append(append(label.Tuple(nil), st.window[1:]...), y)
				} else {
					nw = label.Tuple{}
				}
				key := label.Pack(nw, numClasses)
				cur, ok := next[key]
				if !ok || score > cur.score {
					path := make([]int, len(st.path)+1)
					copy(path, st.path)
					path[len(st.path)] = y
					next[key] = &viterbiState{window: nw, score: score, path: path}
				}
			}
		}
		frontier = sortedByWindow(next, numClasses)
	}

	var best *viterbiState
	for _, st := range frontier {
		if best == nil || st.score > best.score {
			best = st
		}
	}
	if best == nil {
		return nil, 0
	}
	return best.path, best.score
}

// sortedByWindow flattens a window-keyed state map into a slice sorted
// by packed window id, giving every caller a deterministic iteration
// order in place of Go's randomized map order.
func sortedByWindow(m map[int]*viterbiState, numClasses int) []*viterbiState {
	out := make([]*viterbiState, 0, len(m))
	for _, st := range m {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		return label.Pack(out[i].window, numClasses) < label.Pack(out[j].window, numClasses)
	})
	return out
}
