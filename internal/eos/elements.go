package eos

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Element holds the atomic data needed for the ionization balance.
// Partition functions are ground-state statistical weights, which is
// adequate for the neutral-to-doubly-ionized balance at photospheric
// temperatures.
type Element struct {
	Symbol string
	Mass   float64    // atomic mass, amu
	LogEps float64    // abundance, log10(N/N_H) + 12
	Chi    [2]float64 // first and second ionization potentials, eV
	U      [3]float64 // partition functions of stages I, II, III
}

// defaultElements lists the principal electron donors and mass carriers with
// the RH default solar abundances. Hydrogen must stay first.
var defaultElements = []Element{
	{"H", 1.008, 12.00, [2]float64{13.598, 0}, [3]float64{2, 1, 1}},
	{"He", 4.003, 10.99, [2]float64{24.587, 54.418}, [3]float64{1, 2, 1}},
	{"C", 12.011, 8.56, [2]float64{11.260, 24.383}, [3]float64{9, 6, 1}},
	{"N", 14.007, 8.05, [2]float64{14.534, 29.601}, [3]float64{4, 9, 6}},
	{"O", 15.999, 8.93, [2]float64{13.618, 35.121}, [3]float64{9, 4, 9}},
	{"Ne", 20.180, 8.09, [2]float64{21.565, 40.963}, [3]float64{1, 6, 9}},
	{"Na", 22.990, 6.33, [2]float64{5.139, 47.286}, [3]float64{2, 1, 6}},
	{"Mg", 24.305, 7.58, [2]float64{7.646, 15.035}, [3]float64{1, 2, 1}},
	{"Al", 26.982, 6.47, [2]float64{5.986, 18.829}, [3]float64{6, 1, 2}},
	{"Si", 28.086, 7.55, [2]float64{8.152, 16.346}, [3]float64{9, 6, 1}},
	{"S", 32.065, 7.21, [2]float64{10.360, 23.338}, [3]float64{9, 4, 9}},
	{"K", 39.098, 5.12, [2]float64{4.341, 31.625}, [3]float64{2, 1, 6}},
	{"Ca", 40.078, 6.36, [2]float64{6.113, 11.872}, [3]float64{1, 2, 1}},
	{"Fe", 55.845, 7.67, [2]float64{7.902, 16.188}, [3]float64{25, 30, 25}},
}

// DefaultElements returns a copy of the default element table.
func DefaultElements() []Element {
	out := make([]Element, len(defaultElements))
	copy(out, defaultElements)
	return out
}

// abundanceFile is the on-disk TOML layout:
//
//	[abundances]
//	Fe = 7.50
//	C  = 8.39
type abundanceFile struct {
	Abundances map[string]float64 `toml:"abundances"`
}

// LoadAbundances reads log-eps abundance overrides from a TOML file.
func LoadAbundances(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading abundance file: %w", err)
	}
	return ParseAbundances(string(data))
}

// ParseAbundances decodes log-eps abundance overrides from TOML text.
func ParseAbundances(text string) (map[string]float64, error) {
	var raw abundanceFile
	if _, err := toml.Decode(text, &raw); err != nil {
		return nil, fmt.Errorf("decoding abundances: %w", err)
	}
	out := make(map[string]float64, len(raw.Abundances))
	for sym, v := range raw.Abundances {
		out[strings.TrimSpace(sym)] = v
	}
	return out, nil
}

// applyAbundances returns the default table with the given overrides.
// Hydrogen is the reference (log eps = 12) and cannot be overridden.
func applyAbundances(overrides map[string]float64) ([]Element, error) {
	elems := DefaultElements()
	for sym, logEps := range overrides {
		idx := -1
		for i := range elems {
			if strings.EqualFold(elems[i].Symbol, sym) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown element %q", sym)
		}
		if idx == 0 {
			return nil, fmt.Errorf("hydrogen abundance is the reference and cannot be overridden")
		}
		if logEps > 12 || logEps < -5 {
			return nil, fmt.Errorf("abundance of %s out of range: %g", elems[idx].Symbol, logEps)
		}
		elems[idx].LogEps = logEps
	}
	return elems, nil
}
