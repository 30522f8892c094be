package model

import "math"

// ComparisonMetric is one row of a reference-comparison run: a named
// quantity, the external reference value, the value this engine computed,
// and the acceptance tolerance. Downstream report generators tabulate these;
// the engine only supplies the numbers.
type ComparisonMetric struct {
	Name      string
	Reference float64
	Computed  float64
	Tolerance float64
}

// Delta returns the absolute difference between computed and reference.
func (m ComparisonMetric) Delta() float64 {
	return math.Abs(m.Computed - m.Reference)
}

// Pass reports whether the computed value is within tolerance of the
// reference.
func (m ComparisonMetric) Pass() bool {
	return m.Delta() <= m.Tolerance
}
