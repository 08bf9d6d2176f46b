package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/indexcast/internal/models"
)

// EvolveConfig holds genetic search parameters
type EvolveConfig struct {
	Hidden        int
	Population    int
	Generations   int
	MutationRate  float64 // per-weight probability of mutation
	MutationScale float64 // standard deviation of gaussian mutation
	Elite         int     // best genomes copied unchanged into the next generation
	Workers       int     // concurrent fitness evaluations; 0 means GOMAXPROCS
	// Stagnation reseeds every non-elite genome after this many generations
	// without improving the best fitness; 0 disables it
	Stagnation int
	Seed       int64
}

// Genome is one candidate weight vector
type Genome struct {
	ID      uuid.UUID
	Weights []float64
	Fitness float64
}

// GenerationStats summarizes one generation for reporting
type GenerationStats struct {
	Generation  int
	BestFitness float64
	MeanFitness float64
	StdDev      float64
	BestGenome  uuid.UUID
	// Reseeded is set when this generation's non-elite genomes were replaced
	// by fresh random ones after stagnating
	Reseeded bool
}

// Reporter receives stats after each generation
type Reporter func(GenerationStats)

// Evolver trains a Network by genetic search
type Evolver struct {
	cfg      EvolveConfig
	reporter Reporter
}

// NewEvolver creates an Evolver. reporter may be nil.
func NewEvolver(cfg EvolveConfig, reporter Reporter) *Evolver {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Elite < 0 {
		cfg.Elite = 0
	}
	return &Evolver{cfg: cfg, reporter: reporter}
}

// Name implements Trainer
func (e *Evolver) Name() string { return "evolve" }

// Fit implements Trainer. It returns the fittest network of the final generation.
// Cancelling ctx stops the search after the current generation and returns ctx.Err().
func (e *Evolver) Fit(ctx context.Context, set models.ExampleSet) (Model, error) {
	if err := checkSet(set); err != nil {
		return nil, err
	}
	if e.cfg.Population < 2 || e.cfg.Generations < 1 || e.cfg.Hidden < 1 {
		return nil, fmt.Errorf("invalid evolve config: population=%d generations=%d hidden=%d",
			e.cfg.Population, e.cfg.Generations, e.cfg.Hidden)
	}
	if e.cfg.Stagnation < 0 {
		return nil, fmt.Errorf("stagnation %d must not be negative", e.cfg.Stagnation)
	}
	if e.cfg.Elite >= e.cfg.Population {
		return nil, fmt.Errorf("elite %d must be smaller than population %d", e.cfg.Elite, e.cfg.Population)
	}

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	inputs := set.Width()

	population := make([]Genome, e.cfg.Population)
	for i := range population {
		population[i] = Genome{
			ID:      newGenomeID(rng),
			Weights: NewNetwork(inputs, e.cfg.Hidden, rng).Weights,
		}
	}

	best := math.Inf(-1)
	stale := 0
	for gen := 0; gen < e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.evaluate(population, inputs, set)
		sort.SliceStable(population, func(i, j int) bool {
			return population[i].Fitness > population[j].Fitness
		})

		if population[0].Fitness > best {
			best = population[0].Fitness
			stale = 0
		} else {
			stale++
		}
		reseed := e.cfg.Stagnation > 0 && stale >= e.cfg.Stagnation

		if e.reporter != nil {
			stats := summarize(gen, population)
			stats.Reseeded = reseed && gen < e.cfg.Generations-1
			e.reporter(stats)
		}

		if gen == e.cfg.Generations-1 {
			break
		}
		if reseed {
			population = e.reseed(population, inputs, rng)
			stale = 0
			continue
		}
		population = e.reproduce(population, rng)
	}

	return &Network{Inputs: inputs, Hidden: e.cfg.Hidden, Weights: population[0].Weights}, nil
}

// evaluate fills Fitness for every genome using a bounded worker pool.
// Each worker writes only its own population slots.
func (e *Evolver) evaluate(population []Genome, inputs int, set models.ExampleSet) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				net := &Network{Inputs: inputs, Hidden: e.cfg.Hidden, Weights: population[i].Weights}
				population[i].Fitness = fitness(net, set)
			}
		}()
	}
	for i := range population {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// fitness is -0.5 * SSE over the example set
func fitness(net *Network, set models.ExampleSet) float64 {
	h := make([]float64, net.Hidden)
	var sse float64
	for _, ex := range set {
		d := net.forward(ex.Window, h) - ex.Target
		sse += d * d
	}
	return -0.5 * sse
}

// reproduce builds the next generation from a population sorted best first
func (e *Evolver) reproduce(sorted []Genome, rng *rand.Rand) []Genome {
	next := make([]Genome, 0, len(sorted))
	for i := 0; i < e.cfg.Elite; i++ {
		next = append(next, sorted[i])
	}
	for len(next) < len(sorted) {
		a := tournament(sorted, rng)
		b := tournament(sorted, rng)
		child := make([]float64, len(a.Weights))
		for i := range child {
			// uniform crossover
			if rng.Intn(2) == 0 {
				child[i] = a.Weights[i]
			} else {
				child[i] = b.Weights[i]
			}
			if rng.Float64() < e.cfg.MutationRate {
				child[i] += rng.NormFloat64() * e.cfg.MutationScale
			}
		}
		next = append(next, Genome{ID: newGenomeID(rng), Weights: child})
	}
	return next
}

// reseed keeps the elite of a population sorted best first and replaces the
// rest with random genomes
func (e *Evolver) reseed(sorted []Genome, inputs int, rng *rand.Rand) []Genome {
	next := make([]Genome, 0, len(sorted))
	for i := 0; i < e.cfg.Elite; i++ {
		next = append(next, sorted[i])
	}
	for len(next) < len(sorted) {
		next = append(next, Genome{
			ID:      newGenomeID(rng),
			Weights: NewNetwork(inputs, e.cfg.Hidden, rng).Weights,
		})
	}
	return next
}

// tournament picks the fitter of three random genomes
func tournament(population []Genome, rng *rand.Rand) Genome {
	best := population[rng.Intn(len(population))]
	for k := 1; k < 3; k++ {
		c := population[rng.Intn(len(population))]
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

func summarize(gen int, sorted []Genome) GenerationStats {
	fit := make([]float64, len(sorted))
	for i, g := range sorted {
		fit[i] = g.Fitness
	}
	mean, std := stat.MeanStdDev(fit, nil)
	return GenerationStats{
		Generation:  gen,
		BestFitness: sorted[0].Fitness,
		MeanFitness: mean,
		StdDev:      std,
		BestGenome:  sorted[0].ID,
	}
}

// newGenomeID derives a UUID from rng so seeded runs are reproducible
func newGenomeID(rng *rand.Rand) uuid.UUID {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		// math/rand readers never fail
		return uuid.New()
	}
	return id
}
