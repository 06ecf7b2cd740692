package decode

import (
	"sort"

	"github.com/happyhackingspace/crftag/label"
)

// Beam runs beam search over a ChainModel, keeping at most beamWidth
// candidate paths alive at each extended position instead of Viterbi's
// full frontier. A beamWidth of 0 or negative is treated as 1. Ties in
// the kept-candidates cutoff favor the smaller packed window id, for
// deterministic output.
func Beam(model ChainModel, beamWidth int) ([]int, float64) {
	if beamWidth < 1 {
		beamWidth = 1
	}
	lw := model.LeftWindow()
	length := model.Length()
	numClasses := model.NumClasses()

	initWindow := make(label.Tuple, lw)
	for i := range initWindow {
		initWindow[i] = model.PossibleValues(i)[0]
	}
	beam := []*viterbiState{{window: initWindow, score: 0, path: nil}}

	for pos := lw; pos < length; pos++ {
		candidates := make([]*viterbiState, 0, len(beam)*numClasses)
		for _, st := range beam {
			for _, y := range model.PossibleValues(pos) {
				score := st.score + model.TransitionScore(pos, st.window, y)
				var nw label.Tuple
				if lw > 0 {
					nw = append(append(label.Tuple(nil), st.window[1:]...), y)
				} else {
					nw = label.Tuple{}
				}
				path := make([]int, len(st.path)+1)
				copy(path, st.path)
				path[len(st.path)] = y
				candidates = append(candidates, &viterbiState{window: nw, score: score, path: path})
			}
		}

		best := make(map[int]*viterbiState)
		for _, c := range candidates {
			key := label.Pack(c.window, numClasses)
			cur, ok := best[key]
			if !ok || c.score > cur.score {
				best[key] = c
			}
		}
		merged := make([]*viterbiState, 0, len(best))
		for _, c := range best {
			merged = append(merged, c)
		}
		sort.Slice(merged, func(i, j int) bool {
			if merged[i].score != merged[j].score {
				return merged[i].score > merged[j].score
			}
			return label.Pack(merged[i].window, numClasses) < label.Pack(merged[j].window, numClasses)
		})
		if len(merged) > beamWidth {
			merged = merged[:beamWidth]
		}
		beam = merged
	}

	var best *viterbiState
	for _, st := range beam {
		if best == nil || st.score > best.score {
			best = st
		}
	}
	if best == nil {
		return nil, 0
	}
	return best.path, best.score
}
