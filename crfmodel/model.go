// Package crfmodel is the Classifier façade of spec §4.8: it owns the
// class index, feature index, per-order label tuple indices, the
// feature→order map, the ragged weight table, and the configuration
// flags, and exposes Train / Predict / Marginals / Serialize /
// Deserialize.
package crfmodel

import (
	"github.com/happyhackingspace/crftag/idx"
	"github.com/happyhackingspace/crftag/label"
)

// InferenceType selects the decoder Predict uses.
type InferenceType int

const (
	Viterbi InferenceType = iota
	Beam
)

// AnnealingType selects the Gibbs sampler's cooling schedule shape.
type AnnealingType int

const (
	LinearAnnealing AnnealingType = iota
	ExponentialAnnealing
)

// OptimizerType selects the minimizer Train uses.
type OptimizerType int

const (
	QN OptimizerType = iota
	ScaledSGD
	SGDToQN
)

// Flags is the configuration bag of spec §6, populated either
// programmatically or by the CLI's cobra/pflag bindings.
type Flags struct {
	Window                            int
	BackgroundSymbol                  string
	UseReverse                        bool
	UseObservedSequencesOnly          bool
	RemoveBackgroundSingletonFeatures bool

	InferenceType InferenceType
	BeamSize      int

	DoGibbs       bool
	NumSamples    int
	AnnealingType AnnealingType
	AnnealingRate float64
	InitViterbi   bool

	Optimizer           OptimizerType
	QNSize              int
	SGDPasses           int
	QNPasses            int
	InitialGain         float64
	StochasticBatchSize int

	Prior   string // "none" | "quadratic" | "huber" | "quartic"
	Sigma   float64
	Epsilon float64

	Tolerance             float64
	FeatureDiffThresh      float64
	NumTimesPruneFeatures int

	SaveFeatureIndexToDisk bool
	InitialWeights         string
}

// DefaultFlags returns the spec's stated defaults (window 2,
// background "O", Viterbi inference, QN optimizer).
func DefaultFlags() Flags {
	return Flags{
		Window:           2,
		BackgroundSymbol: "O",
		InferenceType:    Viterbi,
		Optimizer:        QN,
		QNSize:           10,
		Sigma:            1.0,
	}
}

// Token is one labeled (or, at prediction time, unlabeled) position in
// a document.
type Token struct {
	Word string
	Gold string // empty at prediction time
}

// Document is a single sequence to train on or label.
type Document []Token

// FeatureFactory is the external collaborator of spec §6: given the
// token sequence and a focus position, it returns, for each clique
// order 0..W-1, the feature strings active at that position and
// order. Name identifies the factory by a stable string persisted in
// the serialized model.
type FeatureFactory interface {
	FeaturesAt(tokens Document, pos int, window int) [][]string
	Name() string
}

// Model holds all learned and configured state of a trained
// classifier: indices, the feature→order map, the weight table, and
// the flags that produced it.
type Model struct {
	Flags Flags

	ClassIndex   *idx.Index[string]
	FeatureIndex *idx.Index[string]
	LabelIndices *label.IndexSet

	// FeatureOrder[f] is the clique order feature f (by global id)
	// belongs to.
	FeatureOrder []int

	// Weights[f][k] is the weight of feature f for label-tuple id k,
	// where k indexes FeatureOrder[f]'s tuple space.
	Weights [][]float64

	// FactoryName is the persisted identifier of the FeatureFactory
	// used to train this model — deserialization does not reconstruct
	// the factory itself, only records which one the caller must
	// supply again.
	FactoryName string

	BackgroundID int
	NumClasses   int
}

// NumFeatures returns the size of the feature index.
func (m *Model) NumFeatures() int { return m.FeatureIndex.Size() }

// Window returns W.
func (m *Model) Window() int { return m.Flags.Window }
