// Package label implements LabelTuple, an ordered tuple of class ids
// of bounded length, and LabelTupleIndex, the dense index over such
// tuples that backs each clique order of a CRF.
package label

import "github.com/happyhackingspace/crftag/idx"

// Tuple is an ordered sequence of class ids, read left (oldest) to
// right (most recent), of length at most the model window W.
type Tuple []int

// Suffix returns the last k elements of t (a new slice; t is
// unmodified). It panics if k > len(t).
func (t Tuple) Suffix(k int) Tuple {
	return append(Tuple(nil), t[len(t)-k:]...)
}

// Extends reports whether t is a suffix of other, or other is a
// suffix of t — the "extends" relation of spec §4.2.
func (t Tuple) Extends(other Tuple) bool {
	if len(t) >= len(other) {
		return suffixEqual(t, other)
	}
	return suffixEqual(other, t)
}

func suffixEqual(longer, shorter Tuple) bool {
	off := len(longer) - len(shorter)
	for i, v := range shorter {
		if longer[off+i] != v {
			return false
		}
	}
	return true
}

// Pack encodes a tuple into a single integer, Σ labels[i]·C^(len-1-i),
// matching spec §4.2's packed-id convention.
func Pack(t Tuple, numClasses int) int {
	id := 0
	for _, v := range t {
		id = id*numClasses + v
	}
	return id
}

// Unpack decodes a packed id of the given tuple length back into a
// Tuple over numClasses classes.
func Unpack(packed, length, numClasses int) Tuple {
	t := make(Tuple, length)
	for i := length - 1; i >= 0; i-- {
		t[i] = packed % numClasses
		packed /= numClasses
	}
	return t
}

// TupleIndex is a dense index over Tuples of one fixed length (one
// clique order), keyed by their packed integer id.
type TupleIndex struct {
	order      int
	numClasses int
	idx        *idx.Index[int]
}

// NewTupleIndex creates an empty index for tuples of length order+1
// over numClasses classes (order is the clique order in spec §4.2's
// sense: order o indexes tuples of length o+1).
func NewTupleIndex(order, numClasses int) *TupleIndex {
	return &TupleIndex{order: order, numClasses: numClasses, idx: idx.New[int]()}
}

// Order returns the clique order this index covers.
func (ti *TupleIndex) Order() int { return ti.order }

// Len returns the tuple length (order + 1) this index covers.
func (ti *TupleIndex) Len() int { return ti.order + 1 }

// Size returns the number of distinct tuples indexed.
func (ti *TupleIndex) Size() int { return ti.idx.Size() }

// IndexOf returns the dense id for t, or (0, false) if absent.
func (ti *TupleIndex) IndexOf(t Tuple) (int, bool) {
	return ti.idx.IndexOf(Pack(t, ti.numClasses))
}

// IndexOfOrAdd returns the dense id for t, inserting it if new.
func (ti *TupleIndex) IndexOfOrAdd(t Tuple) int {
	return ti.idx.IndexOfOrAdd(Pack(t, ti.numClasses))
}

// Get returns the tuple stored at id.
func (ti *TupleIndex) Get(id int) Tuple {
	return Unpack(ti.idx.Get(id), ti.Len(), ti.numClasses)
}

// Values returns all indexed tuples in id order.
func (ti *TupleIndex) Values() []Tuple {
	packed := ti.idx.Values()
	out := make([]Tuple, len(packed))
	for i, p := range packed {
		out[i] = Unpack(p, ti.Len(), ti.numClasses)
	}
	return out
}

// FromValues rebuilds a TupleIndex from tuples in id order, as
// produced by a deserialize step.
func FromValues(order, numClasses int, tuples []Tuple) *TupleIndex {
	ti := NewTupleIndex(order, numClasses)
	for _, t := range tuples {
		ti.IndexOfOrAdd(t)
	}
	return ti
}

// IndexSet holds one TupleIndex per clique order 0..W-1.
type IndexSet struct {
	numClasses int
	indices    []*TupleIndex // indices[o] covers tuples of length o+1
}

// NewIndexSet creates an empty IndexSet for window W over numClasses
// classes.
func NewIndexSet(window, numClasses int) *IndexSet {
	s := &IndexSet{numClasses: numClasses, indices: make([]*TupleIndex, window)}
	for o := range s.indices {
		s.indices[o] = NewTupleIndex(o, numClasses)
	}
	return s
}

// Window returns W, the number of orders held.
func (s *IndexSet) Window() int { return len(s.indices) }

// At returns the TupleIndex for clique order o.
func (s *IndexSet) At(order int) *TupleIndex { return s.indices[order] }

// InsertObserved inserts the full-length tuple t (len(t) == Window())
// into its order's index, along with every suffix of t of length
// 1..len(t)-1 into their respective order indices — the
// "observed-only" insertion rule of spec §4.2.
func (s *IndexSet) InsertObserved(t Tuple) {
	for length := 1; length <= len(t); length++ {
		suffix := t.Suffix(length)
		s.indices[length-1].IndexOfOrAdd(suffix)
	}
}

// BuildAll populates every order's index with the full Cartesian
// product of tuples of that length — the "all labels" mode of spec
// §4.2, used when useObservedSequencesOnly is false.
func (s *IndexSet) BuildAll() {
	for o, ti := range s.indices {
		length := o + 1
		total := intPow(s.numClasses, length)
		for packed := 0; packed < total; packed++ {
			ti.IndexOfOrAdd(Unpack(packed, length, s.numClasses))
		}
	}
}

func intPow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}
