package train

import (
	"fmt"
	"math"
	"math/rand"
)

// Network decodes an Evolver genome into a feedforward net:
// Inputs -> Hidden (tanh) -> 1 (linear).
//
// Weights are stored flat so they can be recombined and mutated directly:
//
//	[ input->hidden (Inputs*Hidden) | hidden biases (Hidden) | hidden->output (Hidden) | output bias (1) ]
type Network struct {
	Inputs  int       `json:"inputs"`
	Hidden  int       `json:"hidden"`
	Weights []float64 `json:"weights"`
}

// NumWeights returns the genome length for a topology
func NumWeights(inputs, hidden int) int {
	return inputs*hidden + hidden + hidden + 1
}

// NewNetwork creates a network with weights drawn uniformly from [-1, 1]
func NewNetwork(inputs, hidden int, rng *rand.Rand) *Network {
	w := make([]float64, NumWeights(inputs, hidden))
	for i := range w {
		w[i] = rng.Float64()*2 - 1
	}
	return &Network{Inputs: inputs, Hidden: hidden, Weights: w}
}

// Validate checks that the weight vector matches the topology
func (n *Network) Validate() error {
	if n.Inputs < 1 || n.Hidden < 1 {
		return fmt.Errorf("network topology %dx%d must be positive", n.Inputs, n.Hidden)
	}
	if want := NumWeights(n.Inputs, n.Hidden); len(n.Weights) != want {
		return fmt.Errorf("network has %d weights, topology needs %d", len(n.Weights), want)
	}
	return nil
}

func (n *Network) hiddenBiasOffset() int { return n.Inputs * n.Hidden }
func (n *Network) outputOffset() int     { return n.hiddenBiasOffset() + n.Hidden }
func (n *Network) outputBiasOffset() int { return n.outputOffset() + n.Hidden }

// forward writes hidden activations into h (len Hidden) and returns the output
func (n *Network) forward(x, h []float64) float64 {
	w := n.Weights
	hb := n.hiddenBiasOffset()
	out := w[n.outputBiasOffset()]
	for j := 0; j < n.Hidden; j++ {
		sum := w[hb+j]
		row := w[j*n.Inputs : (j+1)*n.Inputs]
		for i, xi := range x {
			sum += row[i] * xi
		}
		h[j] = math.Tanh(sum)
		out += w[n.outputOffset()+j] * h[j]
	}
	return out
}

// Predict returns the network output for one input window
func (n *Network) Predict(x []float64) float64 {
	h := make([]float64, n.Hidden)
	return n.forward(x, h)
}
