package crfmodel

import (
	"log/slog"
	"math"

	"github.com/happyhackingspace/crftag/cliquetree"
	"github.com/happyhackingspace/crftag/decode"
	"github.com/happyhackingspace/crftag/idx"
	"github.com/happyhackingspace/crftag/label"
	"github.com/happyhackingspace/crftag/objective"
	"github.com/happyhackingspace/crftag/optimize"
)

// Classifier is the trained engine: a Model plus the FeatureFactory
// that produced its features (needed again at predict time, since the
// factory itself is not serialized — only its stable name is).
type Classifier struct {
	Model   *Model
	Factory FeatureFactory
}

// Train builds class/feature/label-tuple indices by scanning docs with
// factory, then trains weights by minimizing the CRF objective (spec
// §4.8). If Flags.NumTimesPruneFeatures > 0, features whose weight
// range falls below FeatureDiffThresh are dropped and training repeats
// up to that many additional times.
func Train(docs []Document, factory FeatureFactory, flags Flags) (*Classifier, error) {
	if flags.Window <= 0 {
		return nil, &ConfigError{Msg: "window must be positive"}
	}
	if flags.BackgroundSymbol == "" {
		return nil, &ConfigError{Msg: "backgroundSymbol must be set"}
	}

	banned := map[string]bool{}
	var model *Model
	var err error

	passes := flags.NumTimesPruneFeatures + 1
	for pass := 0; pass < passes; pass++ {
		model, err = trainOnce(docs, factory, flags, banned)
		if err != nil {
			return nil, err
		}
		slog.Info("training pass complete", "pass", pass, "features", model.NumFeatures())

		if pass == passes-1 {
			break
		}
		newlyBanned := featuresBelowThreshold(model, flags.FeatureDiffThresh)
		if len(newlyBanned) == 0 {
			break
		}
		for _, s := range newlyBanned {
			banned[s] = true
		}
		slog.Debug("pruning features", "dropped", len(newlyBanned), "total-banned", len(banned))
	}

	return &Classifier{Model: model, Factory: factory}, nil
}

func trainOnce(docs []Document, factory FeatureFactory, flags Flags, banned map[string]bool) (*Model, error) {
	classIndex := idx.New[string]()
	featureIndex := idx.New[string]()
	var featureOrder []int
	backgroundID := classIndex.IndexOfOrAdd(flags.BackgroundSymbol)

	encoded := make([]encodedDoc, 0, len(docs))
	for _, doc := range docs {
		e, err := encodeBanned(doc, factory, flags.Window, classIndex, featureIndex, &featureOrder, banned)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, e)
	}

	numClasses := classIndex.Size()
	labelIndices := label.NewIndexSet(flags.Window, numClasses)
	if flags.UseObservedSequencesOnly {
		for _, e := range encoded {
			insertObservedTuples(labelIndices, e.labels, flags.Window, backgroundID)
		}
	} else {
		labelIndices.BuildAll()
	}

	prior := priorFromFlags(flags)
	obj := objective.New(toObjectiveDocs(encoded), labelIndices, numClasses, featureOrder, backgroundID, flags.Window, prior, flags.Sigma, flags.Epsilon)

	x0 := make([]float64, obj.DomainDimension())
	x, err := minimize(obj, flags, x0)
	if err != nil {
		return nil, err
	}

	return &Model{
		Flags:        flags,
		ClassIndex:   classIndex,
		FeatureIndex: featureIndex,
		LabelIndices: labelIndices,
		FeatureOrder: featureOrder,
		Weights:      obj.Weights(x),
		FactoryName:  factory.Name(),
		BackgroundID: backgroundID,
		NumClasses:   numClasses,
	}, nil
}

func priorFromFlags(flags Flags) objective.Regularizer {
	switch flags.Prior {
	case "huber":
		return objective.Huber
	case "quartic":
		return objective.Quartic
	case "none":
		return objective.NoPrior
	default:
		return objective.Quadratic
	}
}

func minimize(obj *objective.CRFObjective, flags Flags, x0 []float64) ([]float64, error) {
	switch flags.Optimizer {
	case ScaledSGD:
		sgd := optimize.NewScaledSGDMinimizer(maxInt(flags.SGDPasses, 1))
		if flags.StochasticBatchSize > 0 {
			sgd.BatchSize = flags.StochasticBatchSize
		}
		if flags.InitialGain > 0 {
			sgd.Gain = flags.InitialGain
		}
		return sgd.Minimize(obj, x0), nil
	case SGDToQN:
		m := optimize.NewSGDToQNMinimizer(maxInt(flags.SGDPasses, 1), maxInt(flags.QNPasses, 1), maxInt(flags.QNSize, 1))
		if flags.StochasticBatchSize > 0 {
			m.SGD.BatchSize = flags.StochasticBatchSize
		}
		if flags.InitialGain > 0 {
			m.SGD.Gain = flags.InitialGain
		}
		return m.Minimize(obj, x0)
	default:
		qn := optimize.NewQNMinimizer(maxInt(flags.QNSize, 10))
		if flags.Tolerance > 0 {
			qn.Epsilon = flags.Tolerance
		}
		maxIter := flags.QNPasses
		if maxIter <= 0 {
			maxIter = 200
		}
		return qn.Minimize(obj, x0, maxIter)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// featuresBelowThreshold returns the feature strings whose weight
// range (max-min across the feature's tuple ids) falls below thresh —
// spec §4.8's feature pruning criterion.
func featuresBelowThreshold(m *Model, thresh float64) []string {
	var out []string
	for f, row := range m.Weights {
		if len(row) == 0 {
			continue
		}
		lo, hi := row[0], row[0]
		for _, w := range row {
			if w < lo {
				lo = w
			}
			if w > hi {
				hi = w
			}
		}
		if hi-lo < thresh {
			out = append(out, m.FeatureIndex.Get(f))
		}
	}
	return out
}

// encodeBanned is encode with a pre-filtered FeatureFactory wrapper so
// banned feature strings are never interned.
func encodeBanned(doc Document, factory FeatureFactory, window int, classIndex, featureIndex *idx.Index[string], featureOrder *[]int, banned map[string]bool) (encodedDoc, error) {
	if len(banned) == 0 {
		return encode(doc, factory, window, classIndex, featureIndex, featureOrder, true)
	}
	return encode(doc, filteredFactory{factory, banned}, window, classIndex, featureIndex, featureOrder, true)
}

type filteredFactory struct {
	FeatureFactory
	banned map[string]bool
}

func (f filteredFactory) FeaturesAt(tokens Document, pos, window int) [][]string {
	raw := f.FeatureFactory.FeaturesAt(tokens, pos, window)
	out := make([][]string, len(raw))
	for o, strs := range raw {
		kept := strs[:0:0]
		for _, s := range strs {
			if !f.banned[s] {
				kept = append(kept, s)
			}
		}
		out[o] = kept
	}
	return out
}

// buildTree encodes doc against an already-trained model (features not
// seen during training are silently dropped) and returns its
// calibrated CliqueTree.
func (c *Classifier) buildTree(doc Document) (*cliquetree.Tree, error) {
	m := c.Model
	e, err := encode(doc, c.Factory, m.Window(), m.ClassIndex, m.FeatureIndex, &m.FeatureOrder, false)
	if err != nil {
		return nil, err
	}
	return cliquetree.Build(m.Weights, e.data, m.LabelIndices, m.NumClasses, m.BackgroundID)
}

// Predict encodes doc, builds a calibrated CliqueTree, runs the
// configured decoder, and returns the predicted class string per
// token. An empty document returns an empty slice, never an error.
func (c *Classifier) Predict(doc Document) ([]string, error) {
	if len(doc) == 0 {
		return []string{}, nil
	}
	tr, err := c.buildTree(doc)
	if err != nil {
		return nil, err
	}

	var ids []int
	switch c.Model.Flags.InferenceType {
	case Beam:
		ids, _ = decode.Beam(tr, maxInt(c.Model.Flags.BeamSize, 1))
	default:
		ids, _ = decode.Viterbi(tr)
	}

	out := make([]string, len(ids))
	for i, y := range ids {
		out[i] = c.Model.ClassIndex.Get(y)
	}
	return out, nil
}

// Marginals returns, for every real position, the normalized
// probability of each class — the per-position posterior of spec
// §4.8. An empty document returns an empty map.
func (c *Classifier) Marginals(doc Document) (map[int]map[string]float64, error) {
	out := map[int]map[string]float64{}
	if len(doc) == 0 {
		return out, nil
	}
	tr, err := c.buildTree(doc)
	if err != nil {
		return nil, err
	}
	for j := 0; j < tr.NumPositions(); j++ {
		row := make(map[string]float64, c.Model.NumClasses)
		for y := 0; y < c.Model.NumClasses; y++ {
			row[c.Model.ClassIndex.Get(y)] = tr.Prob(j, y)
		}
		out[j] = row
	}
	return out, nil
}

// FirstOrderMarginals returns, for every adjacent pair of real
// positions, the normalized joint probability of each class pair.
func (c *Classifier) FirstOrderMarginals(doc Document) (map[int]map[[2]string]float64, error) {
	out := map[int]map[[2]string]float64{}
	if len(doc) < 2 {
		return out, nil
	}
	tr, err := c.buildTree(doc)
	if err != nil {
		return nil, err
	}
	for j := 1; j < tr.NumPositions(); j++ {
		row := make(map[[2]string]float64, c.Model.NumClasses*c.Model.NumClasses)
		for a := 0; a < c.Model.NumClasses; a++ {
			for b := 0; b < c.Model.NumClasses; b++ {
				p := tr.CliqueProb(j, 1, label.Tuple{a, b})
				if math.IsNaN(p) {
					continue
				}
				row[[2]string{c.Model.ClassIndex.Get(a), c.Model.ClassIndex.Get(b)}] = p
			}
		}
		out[j] = row
	}
	return out, nil
}
