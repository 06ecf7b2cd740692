package decode

import (
	"math"
	"math/rand"
)

// CoolingSchedule controls the simulated-annealing temperature used by
// GibbsSampler.FindBestUsingAnnealing across its iterations.
type CoolingSchedule interface {
	NumIterations() int
	Temperature(iteration int) float64
}

// LinearCooling anneals temperature linearly from 1 down to (near) 0
// over its iterations.
type LinearCooling struct {
	Iterations int
}

func (c LinearCooling) NumIterations() int { return c.Iterations }

func (c LinearCooling) Temperature(iteration int) float64 {
	if c.Iterations <= 1 {
		return 0
	}
	return 1.0 - float64(iteration)/float64(c.Iterations-1)
}

// ExponentialCooling anneals temperature geometrically from 1 toward 0
// at the given decay rate per iteration (0 < Rate < 1).
type ExponentialCooling struct {
	Iterations int
	Rate       float64
}

func (c ExponentialCooling) NumIterations() int { return c.Iterations }

func (c ExponentialCooling) Temperature(iteration int) float64 {
	return math.Pow(c.Rate, float64(iteration))
}

// GibbsSampler samples label sequences from the distribution a
// SequenceModel defines, and can use that sampling process to search
// for the highest-scoring sequence — either by drawing independent
// samples and keeping the best, or by simulated annealing.
type GibbsSampler struct {
	Listener SequenceListener
	Rand     *rand.Rand

	// ReturnLastFoundSequence makes FindBestUsingAnnealing return
	// whatever sequence the last iteration produced rather than the
	// highest-scoring sequence seen — useful when the schedule ends at
	// temperature 0 and the last sample is already the argmax.
	ReturnLastFoundSequence bool
}

// NewGibbsSampler returns a GibbsSampler with a fresh default source.
func NewGibbsSampler() *GibbsSampler {
	return &GibbsSampler{Rand: rand.New(rand.NewSource(1))}
}

func (g *GibbsSampler) rng() *rand.Rand {
	if g.Rand == nil {
		g.Rand = rand.New(rand.NewSource(1))
	}
	return g.Rand
}

func (g *GibbsSampler) notifyInitial(seq []int) {
	if g.Listener != nil {
		g.Listener.SetInitialSequence(seq)
	}
}

func (g *GibbsSampler) notifyUpdate(seq []int, pos, oldVal int) {
	if g.Listener != nil {
		g.Listener.UpdateSequenceElement(seq, pos, oldVal)
	}
}

// RandomSequence draws an independent uniformly random label at every
// position from model.PossibleValues.
func (g *GibbsSampler) RandomSequence(model SequenceModel) []int {
	seq := make([]int, model.Length())
	for i := range seq {
		classes := model.PossibleValues(i)
		seq[i] = classes[g.rng().Intn(len(classes))]
	}
	return seq
}

// BestSequence finds the best sequence by collecting numSamples
// samples sampleInterval apart, scoring each, and returning the
// highest-scoring one.
func (g *GibbsSampler) BestSequence(model SequenceModel, numSamples, sampleInterval int) []int {
	initial := g.RandomSequence(model)
	return g.FindBestUsingSampling(model, numSamples, sampleInterval, initial)
}

// FindBestUsingSampling collects numSamples samples starting from
// initialSequence, sampleInterval sweeps apart, and returns the
// highest-scoring sample.
func (g *GibbsSampler) FindBestUsingSampling(model SequenceModel, numSamples, sampleInterval int, initialSequence []int) []int {
	samples := g.CollectSamples(model, numSamples, sampleInterval, initialSequence)
	var best []int
	bestScore := math.Inf(-1)
	for _, seq := range samples {
		score := model.ScoreOf(seq)
		if score > bestScore {
			best = seq
			bestScore = score
		}
	}
	return best
}

// CollectSamples draws numSamples samples, sampleInterval full sweeps
// apart (to reduce autocorrelation), starting from initialSequence.
func (g *GibbsSampler) CollectSamples(model SequenceModel, numSamples, sampleInterval int, initialSequence []int) [][]int {
	g.notifyInitial(initialSequence)
	result := make([][]int, 0, numSamples)
	sequence := append([]int(nil), initialSequence...)
	for i := 0; i < numSamples; i++ {
		sequence = append([]int(nil), sequence...)
		g.sampleSequenceRepeatedly(model, sequence, sampleInterval)
		result = append(result, sequence)
	}
	return result
}

func (g *GibbsSampler) sampleSequenceRepeatedly(model SequenceModel, sequence []int, numSweeps int) {
	g.notifyInitial(sequence)
	for i := 0; i < numSweeps; i++ {
		g.SampleSequenceForward(model, sequence, 1.0)
	}
}

// FindBestUsingAnnealing draws a random initial sequence and searches
// for the best sequence by simulated annealing under schedule.
func (g *GibbsSampler) FindBestUsingAnnealing(model SequenceModel, schedule CoolingSchedule) []int {
	return g.FindBestUsingAnnealingFrom(model, schedule, g.RandomSequence(model))
}

// FindBestUsingAnnealingFrom runs simulated annealing starting from
// initialSequence: one forward sweep per iteration, temperature
// supplied by schedule, keeping the highest-scoring sequence seen
// unless ReturnLastFoundSequence is set.
func (g *GibbsSampler) FindBestUsingAnnealingFrom(model SequenceModel, schedule CoolingSchedule, initialSequence []int) []int {
	g.notifyInitial(initialSequence)
	sequence := append([]int(nil), initialSequence...)
	var best []int
	bestScore := math.Inf(-1)
	score := math.Inf(-1)
	if !g.ReturnLastFoundSequence {
		score = model.ScoreOf(sequence)
	}
	_ = score

	for i := 0; i < schedule.NumIterations(); i++ {
		sequence = append([]int(nil), sequence...)
		temperature := schedule.Temperature(i)
		g.SampleSequenceForward(model, sequence, temperature)
		if g.ReturnLastFoundSequence {
			best = sequence
			continue
		}
		s := model.ScoreOf(sequence)
		if s > bestScore {
			best = sequence
			bestScore = s
		}
	}
	return best
}

// SampleSequenceForward resamples every position once, left to right,
// at the given temperature (1.0 = the model's own distribution, 0.0 =
// degenerate argmax, otherwise the distribution is raised to the
// 1/temperature power before renormalizing).
func (g *GibbsSampler) SampleSequenceForward(model SequenceModel, sequence []int, temperature float64) {
	for pos := 0; pos < len(sequence); pos++ {
		g.SamplePosition(model, sequence, pos, temperature)
	}
}

// SampleSequenceBackward resamples every position once, right to left.
func (g *GibbsSampler) SampleSequenceBackward(model SequenceModel, sequence []int, temperature float64) {
	for pos := len(sequence) - 1; pos >= 0; pos-- {
		g.SamplePosition(model, sequence, pos, temperature)
	}
}

// SamplePosition resamples position pos in place, returning the
// probability assigned to the newly drawn label.
func (g *GibbsSampler) SamplePosition(model SequenceModel, sequence []int, pos int, temperature float64) float64 {
	distribution := model.ScoresOf(sequence, pos)
	switch {
	case temperature == 0.0:
		argmax := 0
		for i, v := range distribution {
			if v > distribution[argmax] {
				argmax = i
			}
		}
		for i := range distribution {
			distribution[i] = math.Inf(-1)
		}
		distribution[argmax] = 0.0
	case temperature != 1.0:
		for i := range distribution {
			distribution[i] /= temperature
		}
	}
	logNormalize(distribution)
	for i := range distribution {
		distribution[i] = math.Exp(distribution[i])
	}

	oldTag := sequence[pos]
	newTag := sampleFromDistribution(distribution, g.rng())
	sequence[pos] = newTag
	g.notifyUpdate(sequence, pos, oldTag)
	return distribution[newTag]
}

func logNormalize(v []float64) {
	max := math.Inf(-1)
	for _, x := range v {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return
	}
	var sum float64
	for _, x := range v {
		sum += math.Exp(x - max)
	}
	logSum := max + math.Log(sum)
	for i := range v {
		v[i] -= logSum
	}
}

func sampleFromDistribution(probs []float64, r *rand.Rand) int {
	u := r.Float64()
	var cumulative float64
	for i, p := range probs {
		cumulative += p
		if u <= cumulative {
			return i
		}
	}
	return len(probs) - 1
}
