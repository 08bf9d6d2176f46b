package models

// Example pairs one input window with the scalar target it should predict.
// Offset is the window's start index in the series it was cut from.
type Example struct {
	Offset int       `json:"offset"`
	Window []float64 `json:"window"`
	Target float64   `json:"target"`
}

// ExampleSet is an ordered collection of examples, earliest window first
type ExampleSet []Example

// Inputs returns the windows as a parallel slice of input vectors
func (es ExampleSet) Inputs() [][]float64 {
	inputs := make([][]float64, len(es))
	for i, e := range es {
		inputs[i] = e.Window
	}
	return inputs
}

// Targets returns the targets as a parallel slice
func (es ExampleSet) Targets() []float64 {
	targets := make([]float64, len(es))
	for i, e := range es {
		targets[i] = e.Target
	}
	return targets
}

// Width returns the window length shared by all examples, or 0 for an empty set
func (es ExampleSet) Width() int {
	if len(es) == 0 {
		return 0
	}
	return len(es[0].Window)
}

// Dataset holds the training and testing example sets of one run
type Dataset struct {
	Train ExampleSet `json:"train"`
	Test  ExampleSet `json:"test"`
}
