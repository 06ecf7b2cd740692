package crfmodel

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/happyhackingspace/crftag/idx"
	"github.com/happyhackingspace/crftag/label"
)

// FormatVersion is bumped whenever the wire layout of record changes.
// Reading rejects any file whose version disagrees.
const FormatVersion = 1

// record is the flat, msgpack-friendly mirror of Model — spec §6's
// serialized model format: label tuple indices per order, class index,
// feature index, flags, feature factory identifier, window, and the
// ragged weight table.
type record struct {
	Version      int
	Window       int
	BackgroundID int
	NumClasses   int
	FactoryName  string
	Flags        Flags
	Classes      []string
	Features     []string
	FeatureOrder []int
	Weights      [][]float64
	// LabelTuples[o] lists every tuple indexed at order o, in id order,
	// packed as flat int slices of length o+1.
	LabelTuples [][][]int
}

func toRecord(m *Model) record {
	tuples := make([][][]int, m.LabelIndices.Window())
	for o := range tuples {
		ti := m.LabelIndices.At(o)
		vals := ti.Values()
		flat := make([][]int, len(vals))
		for i, t := range vals {
			flat[i] = append([]int(nil), t...)
		}
		tuples[o] = flat
	}
	return record{
		Version:      FormatVersion,
		Window:       m.Window(),
		BackgroundID: m.BackgroundID,
		NumClasses:   m.NumClasses,
		FactoryName:  m.FactoryName,
		Flags:        m.Flags,
		Classes:      m.ClassIndex.Values(),
		Features:     m.FeatureIndex.Values(),
		FeatureOrder: m.FeatureOrder,
		Weights:      m.Weights,
		LabelTuples:  tuples,
	}
}

func fromRecord(r record) (*Model, error) {
	if r.Version != FormatVersion {
		return nil, &FormatError{Msg: fmt.Sprintf("unsupported format version %d, want %d", r.Version, FormatVersion)}
	}
	if len(r.LabelTuples) != r.Window {
		return nil, &FormatError{Msg: fmt.Sprintf("label tuple index count %d disagrees with window %d", len(r.LabelTuples), r.Window)}
	}
	if len(r.FeatureOrder) != len(r.Features) {
		return nil, &FormatError{Msg: fmt.Sprintf("feature order count %d disagrees with feature count %d", len(r.FeatureOrder), len(r.Features))}
	}
	if len(r.Weights) != len(r.Features) {
		return nil, &FormatError{Msg: fmt.Sprintf("weight row count %d disagrees with feature count %d", len(r.Weights), len(r.Features))}
	}

	labelIndices := label.NewIndexSet(r.Window, r.NumClasses)
	for o := 0; o < r.Window; o++ {
		for _, flat := range r.LabelTuples[o] {
			if len(flat) != o+1 {
				return nil, &FormatError{Msg: fmt.Sprintf("tuple at order %d has arity %d, want %d", o, len(flat), o+1)}
			}
			labelIndices.At(o).IndexOfOrAdd(label.Tuple(flat))
		}
	}

	return &Model{
		Flags:        r.Flags,
		ClassIndex:   idx.FromValues(r.Classes),
		FeatureIndex: idx.FromValues(r.Features),
		LabelIndices: labelIndices,
		FeatureOrder: r.FeatureOrder,
		Weights:      r.Weights,
		FactoryName:  r.FactoryName,
		BackgroundID: r.BackgroundID,
		NumClasses:   r.NumClasses,
	}, nil
}

// Serialize writes the model's binary form (msgpack-encoded record,
// version-headed) to w.
func (m *Model) Serialize(w io.Writer) error {
	b, err := msgpack.Marshal(toRecord(m))
	if err != nil {
		return &FormatError{Msg: "encoding model record", Err: err}
	}
	if _, err := w.Write(b); err != nil {
		return &ResourceError{Msg: "writing model", Err: err}
	}
	return nil
}

// Deserialize reads a model previously written by Serialize from r,
// rejecting any payload whose version, record counts, or tuple arities
// disagree with the declared values.
func Deserialize(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ResourceError{Msg: "reading model", Err: err}
	}
	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, &FormatError{Msg: "decoding model record", Err: err}
	}
	return fromRecord(rec)
}

// Save writes the model to path in binary form, opening and closing
// the file on every exit path.
func (m *Model) Save(path string) (err error) {
	f, openErr := os.Create(path)
	if openErr != nil {
		return &ResourceError{Msg: "creating model file", Err: openErr}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &ResourceError{Msg: "closing model file", Err: cerr}
		}
	}()
	return m.Serialize(f)
}

// Load reads a model previously written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{Msg: "opening model file", Err: err}
	}
	defer f.Close()
	return Deserialize(f)
}

// DumpText writes the human-readable secondary dump format: tab-
// separated sections holding the format version, window, background
// class, factory name, classes, features with their order, and
// weights. The label tuple indices and the flags are not written.
func (m *Model) DumpText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, '\t', 0)
	fmt.Fprintf(tw, "version\t%d\n", FormatVersion)
	fmt.Fprintf(tw, "window\t%d\n", m.Window())
	fmt.Fprintf(tw, "background\t%s\n", m.ClassIndex.Get(m.BackgroundID))
	fmt.Fprintf(tw, "factory\t%s\n", m.FactoryName)
	fmt.Fprintln(tw, "# classes")
	for i, c := range m.ClassIndex.Values() {
		fmt.Fprintf(tw, "%d\t%s\n", i, c)
	}
	fmt.Fprintln(tw, "# features")
	for f, s := range m.FeatureIndex.Values() {
		fmt.Fprintf(tw, "%d\t%s\torder=%d\n", f, s, m.FeatureOrder[f])
	}
	fmt.Fprintln(tw, "# weights")
	for f, row := range m.Weights {
		for k, w := range row {
			fmt.Fprintf(tw, "%d\t%d\t%g\n", f, k, w)
		}
	}
	return tw.Flush()
}
