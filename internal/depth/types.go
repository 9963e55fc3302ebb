package depth

import "errors"

var (
	// ErrEmpty is returned for a stratification with no depth points.
	ErrEmpty = errors.New("empty stratification")
	// ErrShapeMismatch is returned when the input arrays differ in length.
	ErrShapeMismatch = errors.New("stratification arrays differ in length")
)

// IsInvalidInput reports whether err rejects the stratification itself rather
// than a failure of the equation of state.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrEmpty) || errors.Is(err, ErrShapeMismatch)
}

// Stratification is a 1-D atmosphere on an optical-depth grid.
// Index 0 is the top of the atmosphere; LogTau ascends along the line of sight.
type Stratification struct {
	LogTau      []float64 // log10 of optical depth at the reference wavelength
	Temperature []float64 // K
	Ne          []float64 // electron density, cm⁻³
}

// Len returns the number of depth points, or -1 if the arrays differ in length.
func (s Stratification) Len() int {
	n := len(s.LogTau)
	if len(s.Temperature) != n || len(s.Ne) != n {
		return -1
	}
	return n
}

// Result holds the converted depth scales and the per-point intermediates.
type Result struct {
	Height     []float64 // cm, 0 at tau = 1, decreasing into the atmosphere
	ColumnMass []float64 // g/cm²

	Tau  []float64 // optical depth
	Pe   []float64 // electron pressure, dyn/cm²
	Pgas []float64 // gas pressure, dyn/cm²
	Rho  []float64 // mass density, g/cm³
	ChiC []float64 // continuum extinction at the reference wavelength, cm⁻¹

	// TauUnityHeight is the raw height at tau = 1 that was subtracted.
	TauUnityHeight float64
	Wavelength     float64 // Å
}
