package optimize

import "math"

// QNInfo holds an L-BFGS curvature memory — pairs of step/gradient-
// change vectors plus an optional diagonal H0 scaling — so a minimizer
// can be warm-started from another run's history (SGDToQNMinimizer's
// handoff from stochastic gradient descent).
type QNInfo struct {
	SList [][]float64
	YList [][]float64
	Diag  []float64 // optional; nil means use the standard sy/yy scaling
}

// QNMinimizer is a limited-memory BFGS minimizer using the two-loop
// recursion and an Armijo backtracking line search.
type QNMinimizer struct {
	Memory       int
	Epsilon      float64 // convergence threshold on the max |gradient| component
	Monitor      func(iter int, x []float64, value float64)
	MonitorEvery int
}

// NewQNMinimizer returns a QNMinimizer with the given curvature memory
// size and default convergence tolerance.
func NewQNMinimizer(memory int) *QNMinimizer {
	return &QNMinimizer{Memory: memory, Epsilon: 1e-5, MonitorEvery: 1}
}

// Minimize runs up to maxIterations of L-BFGS from x0.
func (m *QNMinimizer) Minimize(fn DifferentiableFunction, x0 []float64, maxIterations int) ([]float64, error) {
	return m.MinimizeWarmStart(fn, x0, maxIterations, nil)
}

// MinimizeWarmStart is Minimize, preloading the curvature memory from
// a prior run's QNInfo (or nil for a cold start).
func (m *QNMinimizer) MinimizeWarmStart(fn DifferentiableFunction, x0 []float64, maxIterations int, warm *QNInfo) ([]float64, error) {
	n := fn.DomainDimension()
	mem := newLBFGSMemory(n, m.Memory)
	if warm != nil {
		for i := range warm.SList {
			mem.update(warm.SList[i], warm.YList[i])
		}
		mem.diag = warm.Diag
	}

	x := append([]float64(nil), x0...)
	grad := fn.Gradient(x)
	value := fn.Value(x)

	for iter := 0; iter < maxIterations; iter++ {
		if maxAbs(grad) < m.Epsilon {
			break
		}

		dir := mem.computeDirection(grad)
		step, newX, newValue := armijoLineSearch(fn, x, dir, value, grad)
		if step == 0 {
			break
		}

		newGrad := fn.Gradient(newX)
		s := subtract(newX, x)
		y := subtract(newGrad, grad)
		mem.update(s, y)

		x, value, grad = newX, newValue, newGrad

		if m.Monitor != nil && m.MonitorEvery > 0 && iter%m.MonitorEvery == 0 {
			m.Monitor(iter, x, value)
		}
	}
	return x, nil
}

// armijoLineSearch backtracks the step length from 1.0 until the
// sufficient-decrease (Armijo) condition holds, mirroring the
// teacher's owlqnLineSearch minus its L1-orthant projection (this
// package's regularizers are handled entirely inside the objective,
// not via orthant constraints).
func armijoLineSearch(fn DifferentiableFunction, x, dir []float64, value float64, grad []float64) (step float64, newX []float64, newValue float64) {
	dirDeriv := dot(dir, grad)
	if dirDeriv >= 0 {
		return 0, x, value
	}
	const c = 1e-4
	step = 1.0
	trialX := make([]float64, len(x))
	for trial := 0; trial < 30; trial++ {
		for i := range x {
			trialX[i] = x[i] + step*dir[i]
		}
		trialValue := fn.Value(trialX)
		if trialValue <= value+c*step*dirDeriv {
			return step, trialX, trialValue
		}
		step *= 0.5
	}
	return 0, x, value
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func subtract(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// lbfgsMemory implements the L-BFGS two-loop recursion over a
// circular buffer of the last m curvature pairs.
type lbfgsMemory struct {
	n, m       int
	s, y       [][]float64
	rho        []float64
	k, size    int
	diag       []float64
}

func newLBFGSMemory(n, m int) *lbfgsMemory {
	return &lbfgsMemory{
		n:   n,
		m:   m,
		s:   make([][]float64, m),
		y:   make([][]float64, m),
		rho: make([]float64, m),
	}
}

func (l *lbfgsMemory) update(s, y []float64) {
	sy := dot(s, y)
	if sy <= 0 {
		return
	}
	idx := l.k % l.m
	l.s[idx] = append([]float64(nil), s...)
	l.y[idx] = append([]float64(nil), y...)
	l.rho[idx] = 1.0 / sy
	l.k++
	if l.size < l.m {
		l.size++
	}
}

func (l *lbfgsMemory) computeDirection(grad []float64) []float64 {
	q := append([]float64(nil), grad...)

	if l.size == 0 {
		for i := range q {
			q[i] = -q[i]
		}
		return q
	}

	alpha := make([]float64, l.size)
	for i := l.size - 1; i >= 0; i-- {
		idx := l.wrap(i)
		alpha[i] = l.rho[idx] * dot(l.s[idx], q)
		for j := range q {
			q[j] -= alpha[i] * l.y[idx][j]
		}
	}

	if l.diag != nil {
		for i := range q {
			q[i] *= l.diag[i]
		}
	} else {
		latest := l.wrap(l.size - 1)
		yy := dot(l.y[latest], l.y[latest])
		if yy > 0 {
			gamma := dot(l.s[latest], l.y[latest]) / yy
			for i := range q {
				q[i] *= gamma
			}
		}
	}

	for i := 0; i < l.size; i++ {
		idx := l.wrap(i)
		beta := l.rho[idx] * dot(l.y[idx], q)
		for j := range q {
			q[j] += (alpha[i] - beta) * l.s[idx][j]
		}
	}

	for i := range q {
		q[i] = -q[i]
	}
	return q
}

// wrap converts a logical slot index (0 = oldest kept pair, size-1 =
// most recent) into its position in the circular buffer.
func (l *lbfgsMemory) wrap(i int) int {
	idx := (l.k - l.size + i) % l.m
	if idx < 0 {
		idx += l.m
	}
	return idx
}
