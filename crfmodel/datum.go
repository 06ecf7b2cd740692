package crfmodel

import (
	"fmt"

	"github.com/happyhackingspace/crftag/idx"
	"github.com/happyhackingspace/crftag/label"
	"github.com/happyhackingspace/crftag/objective"
)

// encodedDoc holds the interned form of one Document: per-position,
// per-order active global feature ids, and (for training) gold class
// ids.
type encodedDoc struct {
	data   [][][]int
	labels []int // nil at prediction time
}

// encode interns factory, classIndex, and featureIndex are mutated
// in-place for training (grow=true) and treated as read-only for
// prediction (grow=false, unknown features silently dropped per
// spec §7).
func encode(doc Document, factory FeatureFactory, window int, classIndex, featureIndex *idx.Index[string], featureOrder *[]int, grow bool) (encodedDoc, error) {
	n := len(doc)
	if n < window {
		return encodedDoc{}, &DataError{Msg: fmt.Sprintf("document has %d tokens, shorter than window %d", n, window)}
	}

	data := make([][][]int, n)
	for i := range doc {
		strs := factory.FeaturesAt(doc, i, window)
		data[i] = make([][]int, window)
		for o := 0; o < window; o++ {
			var ids []int
			for _, s := range strs[o] {
				if grow {
					f := featureIndex.IndexOfOrAdd(s)
					for len(*featureOrder) <= f {
						*featureOrder = append(*featureOrder, o)
					}
					ids = append(ids, f)
				} else if f, ok := featureIndex.IndexOf(s); ok {
					ids = append(ids, f)
				}
				// unknown features at prediction time are silently
				// dropped: they are known not to affect the score.
			}
			data[i][o] = ids
		}
	}

	var labels []int
	if doc[0].Gold != "" || grow {
		labels = make([]int, n)
		for i, tok := range doc {
			if tok.Gold == "" {
				return encodedDoc{}, &DataError{Msg: fmt.Sprintf("position %d has no gold class during training", i)}
			}
			if grow {
				labels[i] = classIndex.IndexOfOrAdd(tok.Gold)
			} else {
				c, ok := classIndex.IndexOf(tok.Gold)
				if !ok {
					return encodedDoc{}, &DataError{Msg: fmt.Sprintf("unknown gold class %q", tok.Gold)}
				}
				labels[i] = c
			}
		}
	}
	return encodedDoc{data: data, labels: labels}, nil
}

// insertObservedTuples walks doc's gold labels with background left
// padding, inserting every window-length tuple (and its suffixes) into
// labelIndices — spec §4.2's useObservedSequencesOnly population mode.
func insertObservedTuples(labelIndices *label.IndexSet, labels []int, window, backgroundID int) {
	buf := make([]int, window)
	for i := range buf {
		buf[i] = backgroundID
	}
	for _, y := range labels {
		copy(buf, buf[1:])
		buf[window-1] = y
		tup := append(label.Tuple(nil), buf...)
		labelIndices.InsertObserved(tup)
	}
}

// toObjectiveDocs converts encoded documents into the objective
// package's Document shape.
func toObjectiveDocs(docs []encodedDoc) []objective.Document {
	out := make([]objective.Document, len(docs))
	for i, d := range docs {
		out[i] = objective.Document{Data: d.data, Labels: d.labels}
	}
	return out
}
