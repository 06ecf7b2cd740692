package optimize

// SGDToQNMinimizer runs ScaledSGDMinimizer for an initial set of
// passes, harvests the curvature pairs it accumulates along the way,
// and warm-starts a QNMinimizer from them — letting L-BFGS start with
// useful second-order information instead of the flat initial
// Hessian a cold start assumes.
type SGDToQNMinimizer struct {
	SGD *ScaledSGDMinimizer
	QN  *QNMinimizer

	SGDPasses int
	QNPasses  int
}

// NewSGDToQNMinimizer returns an SGDToQNMinimizer with teacher-
// grounded defaults.
func NewSGDToQNMinimizer(sgdPasses, qnPasses, qnMemory int) *SGDToQNMinimizer {
	sgd := NewScaledSGDMinimizer(sgdPasses)
	qn := NewQNMinimizer(qnMemory)
	return &SGDToQNMinimizer{SGD: sgd, QN: qn, SGDPasses: sgdPasses, QNPasses: qnPasses}
}

// Minimize runs SGD then quasi-Newton, in sequence, over fn.
func (m *SGDToQNMinimizer) Minimize(fn StochasticFunction, x0 []float64) ([]float64, error) {
	x := m.SGD.Minimize(fn, x0)

	warm := &QNInfo{SList: m.SGD.SList, YList: m.SGD.YList, Diag: m.SGD.Diag}
	return m.QN.MinimizeWarmStart(fn, x, m.QNPasses, warm)
}
