package optimize

import "math/rand"

// ScaledSGDMinimizer is a mini-batch stochastic gradient descent
// minimizer with a decaying gain schedule and gradient smoothing
// across recent batches, as in spec §4.5's Scaled SGD optimizer.
type ScaledSGDMinimizer struct {
	Gain      float64 // initial gain
	BatchSize int
	Memory    int // number of recent batch gradients to average
	Passes    int // passes over the full dataset
	Rand      *rand.Rand

	// SList/YList/Diag accumulate the curvature pairs this run
	// produces, so SGDToQNMinimizer can warm-start an L-BFGS run from
	// them once SGD has run its course.
	SList, YList [][]float64
	Diag         []float64
}

// NewScaledSGDMinimizer returns a ScaledSGDMinimizer with the
// teacher-grounded defaults (batch size 15, initial gain 0.1).
func NewScaledSGDMinimizer(passes int) *ScaledSGDMinimizer {
	return &ScaledSGDMinimizer{
		Gain:      0.1,
		BatchSize: 15,
		Memory:    10,
		Passes:    passes,
		Rand:      rand.New(rand.NewSource(1)),
	}
}

// Minimize runs the scaled SGD schedule for Passes sweeps over the
// data, returning the final weight vector.
func (m *ScaledSGDMinimizer) Minimize(fn StochasticFunction, x0 []float64) []float64 {
	x := append([]float64(nil), x0...)
	n := fn.DataDimension()
	batchSize := m.BatchSize
	if batchSize > n {
		batchSize = n
	}
	numBatches := n / batchSize
	if numBatches == 0 {
		numBatches = 1
	}
	tau := 5.0 * float64(numBatches)
	maxIterations := m.Passes * numBatches

	var gradHistory [][]float64
	for k := 0; k < maxIterations; k++ {
		batch := m.sampleBatch(n, batchSize)
		grad := fn.StochasticGradient(x, batch)

		gradHistory = append(gradHistory, grad)
		if len(gradHistory) > m.Memory {
			gradHistory = gradHistory[1:]
		}
		smoothed := smoothGradients(gradHistory)

		gain := m.Gain * gainSchedule(k, tau)
		newX := make([]float64, len(x))
		for i := range x {
			newX[i] = x[i] - gain*smoothed[i]
		}

		newGrad := fn.StochasticGradient(newX, batch)
		s := subtract(newX, x)
		y := subtract(newGrad, grad)
		m.recordCurvaturePair(s, y)

		x = newX
	}
	return x
}

// gainSchedule implements τ/(τ+k), the decay schedule grounded on
// SGDMinimizer.java's takeStep.
func gainSchedule(k int, tau float64) float64 {
	return tau / (tau + float64(k))
}

// smoothGradients averages the recent batch gradients in history,
// smoothing out mini-batch noise.
func smoothGradients(history [][]float64) []float64 {
	out := make([]float64, len(history[0]))
	for _, g := range history {
		for i, v := range g {
			out[i] += v
		}
	}
	scale := 1.0 / float64(len(history))
	for i := range out {
		out[i] *= scale
	}
	return out
}

func (m *ScaledSGDMinimizer) sampleBatch(n, batchSize int) []int {
	batch := make([]int, batchSize)
	for i := range batch {
		batch[i] = m.Rand.Intn(n)
	}
	return batch
}

// recordCurvaturePair appends an (s,y) pair to the harvested history,
// capping it at Memory pairs (oldest dropped first), and refreshes the
// diagonal H0 scaling estimate from the most recent pair.
func (m *ScaledSGDMinimizer) recordCurvaturePair(s, y []float64) {
	sy := dot(s, y)
	if sy <= 0 {
		return
	}
	m.SList = append(m.SList, s)
	m.YList = append(m.YList, y)
	if len(m.SList) > m.Memory {
		m.SList = m.SList[1:]
		m.YList = m.YList[1:]
	}
	yy := dot(y, y)
	if yy > 0 {
		gamma := sy / yy
		m.Diag = make([]float64, len(s))
		for i := range m.Diag {
			m.Diag[i] = gamma
		}
	}
}
