package eos

import (
	"fmt"
	"math"
)

// H- bound-free cross-section polynomial (units of 1e-18 cm², lambda in Å),
// valid from 2250 Å to the 16419 Å photodetachment threshold.
var hminusBF = [7]float64{
	1.99654, -1.18267e-5, 2.64243e-6, -4.40524e-10,
	3.23992e-14, -1.39568e-18, 2.78701e-23,
}

const (
	hminusThreshold = 16419.0 // Å
	hydrogenLimit   = 911.75  // Lyman limit, Å
	hydrogenLevels  = 8
)

// ContinuumOpacity returns the continuum extinction coefficient in cm⁻¹.
//
// The ionization balance is solved from (T, pe) and scaled so that its total
// pressure matches pgas. Contributions: H- bound-free and free-free, neutral
// hydrogen bound-free and free-free, Thomson scattering on electrons and
// Rayleigh scattering on neutral hydrogen.
func (w *Wittmann) ContinuumOpacity(T, pgas, pe, lambda float64) (float64, error) {
	if math.IsNaN(lambda) || lambda <= 0 {
		return 0, fmt.Errorf("%w: wavelength %g Å", ErrNonPhysical, lambda)
	}
	if math.IsNaN(pgas) || math.IsInf(pgas, 0) || pgas <= 0 {
		return 0, fmt.Errorf("%w: gas pressure %g dyn/cm²", ErrNonPhysical, pgas)
	}
	s, err := w.Solve(T, pe)
	if err != nil {
		return 0, err
	}

	// Heavy particles scale with pgas; electrons are fixed by pe.
	kT := BK * T
	heavy := s.Pgas/kT - s.Ne
	scale := 1.0
	if heavy > 0 {
		scale = math.Max(pgas/kT-s.Ne, 0) / heavy
	}
	nHI := s.NHI * scale
	nHII := s.NHII * scale
	nHm := s.NHm * scale

	stim := 1 - math.Exp(-hcOverK/(lambda*T))

	chi := hminusBoundFree(lambda)*nHm*stim +
		hminusFreeFree(lambda, T)*pe*nHI +
		hydrogenBoundFree(lambda, T)*nHI*stim +
		hydrogenFreeFree(lambda, T)*s.Ne*nHII +
		sigmaThomson*s.Ne +
		rayleighH(lambda)*nHI

	if math.IsNaN(chi) || math.IsInf(chi, 0) || chi < 0 {
		return 0, fmt.Errorf("%w: opacity %g at T=%g K, Pe=%g", ErrNoConvergence, chi, T, pe)
	}
	return chi, nil
}

// hminusBoundFree is the H- photodetachment cross-section per ion, cm².
func hminusBoundFree(lambda float64) float64 {
	if lambda > hminusThreshold {
		return 0
	}
	var sum, p float64 = 0, 1
	for _, a := range hminusBF {
		sum += a * p
		p *= lambda
	}
	return math.Max(sum, 0) * 1e-18
}

// hminusFreeFree is the H- free-free absorption per neutral H atom per unit
// electron pressure, cm⁴/dyn, stimulated emission included (Bell & Berrington fit).
func hminusFreeFree(lambda, T float64) float64 {
	l := math.Log10(lambda)
	l2, l3, l4 := l*l, l*l*l, l*l*l*l
	f0 := -2.2763 - 1.6850*l + 0.76661*l2 - 0.053346*l3
	f1 := 15.2827 - 9.2846*l + 1.99381*l2 - 0.142631*l3
	f2 := -197.789 + 190.266*l - 67.9775*l2 + 10.6913*l3 - 0.625151*l4
	lt := math.Log10(5040 / T)
	return 1e-26 * math.Pow(10, f0+f1*lt+f2*lt*lt)
}

// hydrogenBoundFree sums hydrogenic photoionization from levels 1..8 with unit
// Gaunt factors, per neutral hydrogen atom, cm².
func hydrogenBoundFree(lambda, T float64) float64 {
	const alpha0 = 1.0449e-26 // cm² Å⁻³
	kTeV := BK * T / EV
	h := defaultElements[0]
	var sum float64
	for n := 1; n <= hydrogenLevels; n++ {
		fn := float64(n)
		if lambda > hydrogenLimit*fn*fn {
			continue
		}
		excitation := h.Chi[0] * (1 - 1/(fn*fn))
		pop := 2 * fn * fn / h.U[0] * math.Exp(-excitation/kTeV)
		sum += pop * alpha0 * lambda * lambda * lambda / (fn * fn * fn * fn * fn)
	}
	return sum
}

// hydrogenFreeFree is the hydrogenic free-free coefficient per electron per
// proton, cm⁵, stimulated emission included.
func hydrogenFreeFree(lambda, T float64) float64 {
	nu := CLight / (lambda * 1e-8)
	stim := 1 - math.Exp(-hcOverK/(lambda*T))
	return 3.69e8 / math.Sqrt(T) / (nu * nu * nu) * stim
}

// rayleighH is the Rayleigh cross-section of ground-state hydrogen, cm².
func rayleighH(lambda float64) float64 {
	if lambda < 1215.7 {
		lambda = 1215.7
	}
	l2 := lambda * lambda
	l4 := l2 * l2
	return 5.799e-13/l4 + 1.422e-6/(l4*l2) + 2.784/(l4*l4)
}
