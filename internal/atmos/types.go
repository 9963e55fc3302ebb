// Package atmos reads, writes and stores model atmospheres tabulated on an
// optical-depth grid.
package atmos

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/star/depthscale/internal/depth"
)

var (
	// ErrNoData is returned when a model file contains no depth points.
	ErrNoData = errors.New("model atmosphere has no depth points")
	// ErrNotFound is returned when a named model is not in the library.
	ErrNotFound = errors.New("model atmosphere not found")
	// ErrInvalidName is returned for model names that cannot be stored.
	ErrInvalidName = errors.New("invalid model name")
)

// Model is a named stratification.
type Model struct {
	Name        string
	LogTau      []float64
	Temperature []float64 // K
	Ne          []float64 // cm⁻³
}

// Info summarises a stored model.
type Info struct {
	Name    string    `json:"name"`
	Points  int       `json:"points"`
	ModTime time.Time `json:"mod_time"`
}

// Stratification returns the model as converter input. The slices are shared.
func (m *Model) Stratification() depth.Stratification {
	return depth.Stratification{
		LogTau:      m.LogTau,
		Temperature: m.Temperature,
		Ne:          m.Ne,
	}
}

// Len returns the number of depth points.
func (m *Model) Len() int {
	return len(m.LogTau)
}

// Validate checks the physical preconditions the converter assumes but does
// not enforce: finite values, strictly ascending logtau, positive temperature
// and non-negative ne.
func (m *Model) Validate() error {
	if m.Stratification().Len() < 0 {
		return fmt.Errorf("column lengths differ: logtau=%d temperature=%d ne=%d",
			len(m.LogTau), len(m.Temperature), len(m.Ne))
	}
	if len(m.LogTau) == 0 {
		return ErrNoData
	}
	for k := range m.LogTau {
		if !finite(m.LogTau[k]) || !finite(m.Temperature[k]) || !finite(m.Ne[k]) {
			return fmt.Errorf("non-finite value at depth %d: logtau=%g T=%g ne=%g",
				k, m.LogTau[k], m.Temperature[k], m.Ne[k])
		}
		if k > 0 && !(m.LogTau[k] > m.LogTau[k-1]) {
			return fmt.Errorf("logtau not ascending at depth %d: %g after %g", k, m.LogTau[k], m.LogTau[k-1])
		}
		if !(m.Temperature[k] > 0) {
			return fmt.Errorf("non-positive temperature at depth %d: %g K", k, m.Temperature[k])
		}
		if !(m.Ne[k] >= 0) {
			return fmt.Errorf("negative electron density at depth %d: %g", k, m.Ne[k])
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
