package decode

import (
	"sort"

	"github.com/happyhackingspace/crftag/label"
)

// Scored pairs a label sequence with its model score, as returned by
// KBest.
type Scored struct {
	Sequence []int
	Score    float64
}

// KBest returns the k highest-scoring label sequences under model,
// sorted best-first, by keeping the k best paths into each window
// state instead of Viterbi's single best path. Ties break by packed
// window id for determinism.
func KBest(model ChainModel, k int) []Scored {
	if k < 1 {
		k = 1
	}
	lw := model.LeftWindow()
	length := model.Length()
	numClasses := model.NumClasses()

	initWindow := make(label.Tuple, lw)
	for i := range initWindow {
		initWindow[i] = model.PossibleValues(i)[0]
	}
	frontier := map[int][]*viterbiState{
		label.Pack(initWindow, numClasses): {{window: initWindow, score: 0, path: nil}},
	}

	for pos := lw; pos < length; pos++ {
		next := make(map[int][]*viterbiState)
		for _, states := range frontier {
			for _, st := range states {
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
					key := label.Pack(nw, numClasses)
					next[key] = append(next[key], &viterbiState{window: nw, score: score, path: path})
				}
			}
		}
		for key, states := range next {
			sort.Slice(states, func(i, j int) bool { return states[i].score > states[j].score })
			if len(states) > k {
				states = states[:k]
			}
			next[key] = states
		}
		frontier = next
	}

	var all []*viterbiState
	for _, states := range frontier {
		all = append(all, states...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return label.Pack(all[i].window, numClasses) < label.Pack(all[j].window, numClasses)
	})
	if len(all) > k {
		all = all[:k]
	}

	out := make([]Scored, len(all))
	for i, st := range all {
		out[i] = Scored{Sequence: st.path, Score: st.score}
	}
	return out
}
