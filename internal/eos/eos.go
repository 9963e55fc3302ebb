// Package eos provides the LTE equation of state and continuum opacity used to
// convert optical-depth stratifications to geometric scales.
//
// All quantities are cgs: temperature in K, pressures in dyn/cm², densities in
// g/cm³ or cm⁻³, opacities as extinction coefficients in cm⁻¹. Wavelengths are
// given in Ångström.
package eos

import (
	"errors"
	"fmt"
	"math"
)

// Physical constants (cgs).
const (
	BK      = 1.380658e-16   // Boltzmann constant, erg/K
	EV      = 1.60217733e-12 // erg per eV
	HPlanck = 6.6260755e-27  // erg s
	CLight  = 2.99792458e10  // cm/s
	AMU     = 1.6605402e-24  // g

	// hcOverK is hc/k expressed in Å·K.
	hcOverK = HPlanck * CLight / BK * 1e8

	sigmaThomson = 6.6524e-25 // cm²
)

// DefaultWavelength is the reference continuum wavelength in Å.
const DefaultWavelength = 5000.0

var (
	// ErrNonPhysical is returned for arguments outside the physical domain
	// (non-positive temperature or electron pressure, NaN, Inf).
	ErrNonPhysical = errors.New("non-physical state")

	// ErrNoConvergence is returned when an iterative inversion fails.
	ErrNoConvergence = errors.New("equation of state did not converge")
)

// EOS is the collaborator queried per depth point by the depth-scale converter.
// Implementations in this package require T > 0 and pe > 0 and return
// ErrNonPhysical otherwise, so a depth point with ne = 0 fails conversion.
type EOS interface {
	// GasPressure returns the total gas pressure from temperature and electron
	// pressure. pe must be > 0.
	GasPressure(T, pe float64) (float64, error)
	// Density returns the mass density from temperature and electron pressure.
	Density(T, pe float64) (float64, error)
	// ContinuumOpacity returns the continuum extinction coefficient (cm⁻¹) at
	// wavelength lambda (Å).
	ContinuumOpacity(T, pgas, pe, lambda float64) (float64, error)
}

func checkState(T, pe float64) error {
	if math.IsNaN(T) || math.IsInf(T, 0) || T <= 0 {
		return fmt.Errorf("%w: temperature %g K", ErrNonPhysical, T)
	}
	if math.IsNaN(pe) || math.IsInf(pe, 0) || pe <= 0 {
		return fmt.Errorf("%w: electron pressure %g dyn/cm²", ErrNonPhysical, pe)
	}
	return nil
}
