package eos

import (
	"fmt"
	"math"
)

// Hydrogen negative ion and molecule data.
const (
	chiHminus = 0.754 // H- electron affinity, eV

	// sahaConst is the Saha prefactor in pressure form (dyn/cm², T in K):
	// Pe N1/N0 = sahaConst (U1/U0) T^2.5 10^(-5040 chi / T).
	sahaConst = 0.6665
)

// Wittmann is an LTE equation of state in the style of Wittmann (1974):
// Saha ionization of the tabulated elements plus H-, H+ and H2 for hydrogen.
// It is immutable after construction and safe for concurrent use.
type Wittmann struct {
	elems []Element
	abund []float64 // N_el / N_H
	// muH is the mass per hydrogen nucleus in grams.
	muH float64
}

// State is the solved ionization balance at one (T, Pe) point.
type State struct {
	T  float64 // K
	Pe float64 // dyn/cm²

	NH     float64 // hydrogen nuclei, cm⁻³
	NHI    float64 // neutral atomic hydrogen, cm⁻³
	NHII   float64 // protons, cm⁻³
	NHm    float64 // H- ions, cm⁻³
	NH2    float64 // H2 molecules, cm⁻³
	Ne     float64 // electrons, cm⁻³
	NMetal float64 // nuclei of all non-hydrogen elements, cm⁻³

	Pgas float64 // dyn/cm²
	Rho  float64 // g/cm³
}

// NewWittmann builds the equation of state with the default RH solar
// composition, applying log-eps abundance overrides keyed by element symbol.
func NewWittmann(overrides map[string]float64) (*Wittmann, error) {
	elems, err := applyAbundances(overrides)
	if err != nil {
		return nil, err
	}

	w := &Wittmann{
		elems: elems,
		abund: make([]float64, len(elems)),
	}
	for i, e := range elems {
		w.abund[i] = math.Pow(10, e.LogEps-12)
		w.muH += w.abund[i] * e.Mass * AMU
	}
	return w, nil
}

// MustDefault returns the equation of state with default abundances.
func MustDefault() *Wittmann {
	w, err := NewWittmann(nil)
	if err != nil {
		panic(err)
	}
	return w
}

// Elements returns the composition in use.
func (w *Wittmann) Elements() []Element {
	out := make([]Element, len(w.elems))
	copy(out, w.elems)
	return out
}

// sahaPhi returns Pe*N(upper)/N(lower) for an ionization potential chi (eV).
func sahaPhi(T, chi, uLow, uUp float64) float64 {
	return sahaConst * (uUp / uLow) * math.Pow(T, 2.5) * math.Pow(10, -5040*chi/T)
}

// logKpH2 is the H2 dissociation constant P(H)²/P(H2) in dyn/cm².
func logKpH2(T float64) float64 {
	theta := 5040 / T
	return 12.739 - 5.1172*theta + 0.1244*theta*theta - 0.01474*theta*theta*theta
}

// ionFractions returns the fractions of an element in stages I, II and III.
func ionFractions(e Element, T, pe float64) (f0, f1, f2 float64) {
	r1 := sahaPhi(T, e.Chi[0], e.U[0], e.U[1]) / pe
	r2 := 0.0
	if e.Chi[1] > 0 {
		r2 = sahaPhi(T, e.Chi[1], e.U[1], e.U[2]) / pe
	}
	f0 = 1 / (1 + r1 + r1*r2)
	f1 = r1 * f0
	f2 = r2 * f1
	return f0, f1, f2
}

// Solve computes the full ionization balance for temperature T and electron
// pressure pe.
//
// Charge conservation ne = n(H+) - n(H-) + N_H·E_m, with E_m the electrons
// donated per hydrogen nucleus by the other elements and N_H including the
// nuclei bound in H2, is a quadratic in the neutral hydrogen density.
func (w *Wittmann) Solve(T, pe float64) (State, error) {
	if err := checkState(T, pe); err != nil {
		return State{}, err
	}

	kT := BK * T
	ne := pe / kT

	h := w.elems[0]
	rHII := sahaPhi(T, h.Chi[0], h.U[0], h.U[1]) / pe
	rHm := pe / sahaPhi(T, chiHminus, 1, h.U[0])
	kp := math.Pow(10, logKpH2(T))

	var donated, metals float64
	for i := 1; i < len(w.elems); i++ {
		_, f1, f2 := ionFractions(w.elems[i], T, pe)
		donated += w.abund[i] * (f1 + 2*f2)
		metals += w.abund[i]
	}

	a := 2 * donated * kT / kp
	b := rHII - rHm + donated*(1+rHII+rHm)
	disc := b*b + 4*a*ne

	var nHI float64
	switch {
	case b > 0:
		nHI = 2 * ne / (b + math.Sqrt(disc))
	case a > 0:
		nHI = (-b + math.Sqrt(disc)) / (2 * a)
	default:
		return State{}, fmt.Errorf("%w: no charge balance at T=%g K, Pe=%g", ErrNonPhysical, T, pe)
	}
	if math.IsNaN(nHI) || math.IsInf(nHI, 0) || nHI <= 0 {
		return State{}, fmt.Errorf("%w: neutral hydrogen density %g at T=%g K, Pe=%g", ErrNoConvergence, nHI, T, pe)
	}

	s := State{
		T:    T,
		Pe:   pe,
		NHI:  nHI,
		NHII: nHI * rHII,
		NHm:  nHI * rHm,
		NH2:  nHI * nHI * kT / kp,
		Ne:   ne,
	}
	s.NH = s.NHI + s.NHII + s.NHm + 2*s.NH2
	s.NMetal = s.NH * metals
	s.Pgas = (s.NHI+s.NHII+s.NHm+s.NH2+s.NMetal+s.Ne) * kT
	s.Rho = s.NH * w.muH
	return s, nil
}

// GasPressure returns the total gas pressure (electrons included).
func (w *Wittmann) GasPressure(T, pe float64) (float64, error) {
	s, err := w.Solve(T, pe)
	if err != nil {
		return 0, err
	}
	return s.Pgas, nil
}

// Density returns the mass density.
func (w *Wittmann) Density(T, pe float64) (float64, error) {
	s, err := w.Solve(T, pe)
	if err != nil {
		return 0, err
	}
	return s.Rho, nil
}

// ElectronPressure inverts GasPressure by bisection in log Pe.
func (w *Wittmann) ElectronPressure(T, pgas float64) (float64, error) {
	if math.IsNaN(pgas) || math.IsInf(pgas, 0) || pgas <= 0 {
		return 0, fmt.Errorf("%w: gas pressure %g dyn/cm²", ErrNonPhysical, pgas)
	}

	residual := func(logPe float64) (float64, error) {
		pg, err := w.GasPressure(T, math.Pow(10, logPe))
		if err != nil {
			return 0, err
		}
		return math.Log10(pg) - math.Log10(pgas), nil
	}

	hi := math.Log10(pgas)
	lo := hi - 25
	fHi, err := residual(hi)
	if err != nil {
		return 0, err
	}
	fLo, err := residual(lo)
	if err != nil {
		return 0, err
	}
	if fLo*fHi > 0 {
		return 0, fmt.Errorf("%w: Pe not bracketed for T=%g K, Pgas=%g", ErrNoConvergence, T, pgas)
	}

	for i := 0; i < 200; i++ {
		mid := 0.5 * (lo + hi)
		fMid, err := residual(mid)
		if err != nil {
			return 0, err
		}
		if math.Abs(fMid) < 1e-12 || hi-lo < 1e-12 {
			return math.Pow(10, mid), nil
		}
		if fMid*fLo > 0 {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return 0, fmt.Errorf("%w: bisection exhausted for T=%g K, Pgas=%g", ErrNoConvergence, T, pgas)
}
