package depth

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/star/depthscale/internal/eos"
	"github.com/star/depthscale/internal/metrics"
)

// constEOS returns fixed values regardless of state.
type constEOS struct {
	pgas, rho, chi float64
	failAtT        float64 // return errStub when T equals this value
}

var errStub = errors.New("stub eos failure")

func (c constEOS) GasPressure(T, pe float64) (float64, error) {
	if T == c.failAtT {
		return 0, errStub
	}
	return c.pgas, nil
}

func (c constEOS) Density(T, pe float64) (float64, error) { return c.rho, nil }

func (c constEOS) ContinuumOpacity(T, pgas, pe, lambda float64) (float64, error) {
	return c.chi, nil
}

// gridLogTau returns logtau from lo/10 to hi/10 in steps of 0.1, with exact zero.
func gridLogTau(lo, hi int) []float64 {
	out := make([]float64, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, float64(i)/10)
	}
	return out
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// greyProfile is an Eddington grey atmosphere with a rising electron density.
func greyProfile() Stratification {
	logTau := gridLogTau(-60, 15)
	T := make([]float64, len(logTau))
	ne := make([]float64, len(logTau))
	for i, lt := range logTau {
		tau := math.Pow(10, lt)
		T[i] = 5780 * math.Pow(0.75*(tau+2.0/3.0), 0.25)
		ne[i] = math.Pow(10, 13.45+0.5*lt)
	}
	return Stratification{LogTau: logTau, Temperature: T, Ne: ne}
}

func indexOfZero(logTau []float64) int {
	for i, lt := range logTau {
		if lt == 0 {
			return i
		}
	}
	return -1
}

// TestIsothermalClosedForm checks that constant opacity reproduces
// height = -(tau - 1)/chi and cmass = tau0/chi*rho + (tau - tau0).
func TestIsothermalClosedForm(t *testing.T) {
	const chi, rho = 2e-7, 3e-7
	logTau := gridLogTau(-40, 10)
	n := len(logTau)

	c := NewConverter(constEOS{pgas: 1e5, rho: rho, chi: chi, failAtT: -1})
	res, err := c.Convert(Stratification{LogTau: logTau, Temperature: filled(n, 5800), Ne: filled(n, 1e14)})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	tau0 := math.Pow(10, logTau[0])
	scale := 1 / chi
	for k, lt := range logTau {
		tau := math.Pow(10, lt)
		wantH := -(tau - 1) / chi
		if diff := math.Abs(res.Height[k] - wantH); diff > 1e-3*math.Max(math.Abs(wantH), scale) {
			t.Errorf("height[%d] = %.6e cm, want %.6e cm", k, res.Height[k], wantH)
		}
		wantM := tau0/chi*rho + (tau - tau0)
		if diff := math.Abs(res.ColumnMass[k] - wantM); diff > 1e-3*math.Abs(wantM) {
			t.Errorf("cmass[%d] = %.6e, want %.6e", k, res.ColumnMass[k], wantM)
		}
	}
}

// TestIsothermalWittmann repeats the closed-form check against the real
// equation of state, whose opacity is constant for a constant (T, ne).
func TestIsothermalWittmann(t *testing.T) {
	logTau := gridLogTau(-30, 10)
	n := len(logTau)

	res, err := NewConverter(eos.MustDefault()).Convert(Stratification{
		LogTau:      logTau,
		Temperature: filled(n, 6000),
		Ne:          filled(n, 5e13),
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	chi := res.ChiC[0]
	if chi <= 0 {
		t.Fatalf("opacity = %g, want positive", chi)
	}
	for k, lt := range logTau {
		if res.ChiC[k] != chi {
			t.Fatalf("chi[%d] = %g differs from chi[0] = %g for identical state", k, res.ChiC[k], chi)
		}
		wantH := -(math.Pow(10, lt) - 1) / chi
		if diff := math.Abs(res.Height[k] - wantH); diff > 1e-3*math.Max(math.Abs(wantH), 1/chi) {
			t.Errorf("height[%d] = %.6e cm, want %.6e cm", k, res.Height[k], wantH)
		}
	}
}

func TestGreyAtmosphereProperties(t *testing.T) {
	s := greyProfile()
	res, err := NewConverter(eos.MustDefault()).Convert(s)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	zero := indexOfZero(s.LogTau)
	if zero < 0 {
		t.Fatal("grid has no logtau = 0 point")
	}
	if math.Abs(res.Height[zero]) > 1e-6 {
		t.Errorf("height at logtau=0 = %g cm, want 0", res.Height[zero])
	}

	for k := 1; k < len(s.LogTau); k++ {
		if res.ColumnMass[k] < res.ColumnMass[k-1] {
			t.Errorf("cmass decreases at %d: %g < %g", k, res.ColumnMass[k], res.ColumnMass[k-1])
		}
		if res.Height[k] > res.Height[k-1] {
			t.Errorf("height increases at %d: %g > %g", k, res.Height[k], res.Height[k-1])
		}
	}

	// Top of the model should sit a few hundred km above tau = 1.
	topKm := res.Height[0] / 1e5
	if topKm < 10 || topKm > 10000 {
		t.Errorf("top height = %.1f km, expected photospheric scale", topKm)
	}
}

func TestSinglePoint(t *testing.T) {
	const chi, rho = 4e-7, 2e-7
	res, err := NewConverter(constEOS{pgas: 1e4, rho: rho, chi: chi, failAtT: -1}).Convert(Stratification{
		LogTau:      []float64{-2},
		Temperature: []float64{5000},
		Ne:          []float64{1e13},
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.Height[0] != 0 {
		t.Errorf("height = %g, want 0", res.Height[0])
	}
	want := 1e-2 / chi * rho
	if math.Abs(res.ColumnMass[0]-want) > 1e-12*want {
		t.Errorf("cmass = %g, want %g", res.ColumnMass[0], want)
	}
}

func TestConvertInvalidShape(t *testing.T) {
	c := NewConverter(eos.MustDefault())

	tests := []struct {
		name string
		s    Stratification
		want error
	}{
		{"empty", Stratification{}, ErrEmpty},
		{"short temperature", Stratification{
			LogTau: []float64{-1, 0}, Temperature: []float64{5000}, Ne: []float64{1e13, 1e14},
		}, ErrShapeMismatch},
		{"short ne", Stratification{
			LogTau: []float64{-1, 0}, Temperature: []float64{5000, 6000}, Ne: []float64{1e13},
		}, ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Convert(tt.s)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestEOSErrorPropagates verifies collaborator failures surface with the
// depth index and remain matchable.
func TestEOSErrorPropagates(t *testing.T) {
	s := Stratification{
		LogTau:      []float64{-2, -1, 0},
		Temperature: []float64{5000, 5500, 7000},
		Ne:          []float64{1e13, 1e14, 1e15},
	}

	_, err := NewConverter(constEOS{pgas: 1, rho: 1, chi: 1, failAtT: 7000}).Convert(s)
	if !errors.Is(err, errStub) {
		t.Fatalf("err = %v, want stub failure", err)
	}
	if !strings.Contains(err.Error(), "depth 2") {
		t.Errorf("error %q does not name the failing depth", err)
	}

	s.Temperature[1] = -10
	_, err = NewConverter(eos.MustDefault()).Convert(s)
	if !errors.Is(err, eos.ErrNonPhysical) {
		t.Errorf("err = %v, want ErrNonPhysical", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantInvalid bool
		wantOutcome string
	}{
		{"success", nil, false, metrics.OutcomeOK},
		{"empty", ErrEmpty, true, metrics.OutcomeInvalidInput},
		{"shape", fmt.Errorf("%w: logtau=2 temperature=1 ne=2", ErrShapeMismatch), true, metrics.OutcomeInvalidInput},
		{"non-physical", fmt.Errorf("depth 3: gas pressure: %w", eos.ErrNonPhysical), false, metrics.OutcomeEOSError},
		{"foreign eos error", fmt.Errorf("depth 2: gas pressure: %w", errStub), false, metrics.OutcomeEOSError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil && IsInvalidInput(tt.err) != tt.wantInvalid {
				t.Errorf("IsInvalidInput = %v, want %v", !tt.wantInvalid, tt.wantInvalid)
			}
			if got := outcome(tt.err); got != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q", got, tt.wantOutcome)
			}
		})
	}
}

func TestReferenceWavelength(t *testing.T) {
	s := greyProfile()
	blue, err := NewConverter(eos.MustDefault()).Convert(s)
	if err != nil {
		t.Fatalf("Convert at 5000 Å failed: %v", err)
	}
	red, err := NewConverter(eos.MustDefault(), WithReferenceWavelength(8000)).Convert(s)
	if err != nil {
		t.Fatalf("Convert at 8000 Å failed: %v", err)
	}
	if red.Wavelength != 8000 || blue.Wavelength != eos.DefaultWavelength {
		t.Errorf("wavelengths = %g, %g", blue.Wavelength, red.Wavelength)
	}
	zero := indexOfZero(s.LogTau)
	if blue.ChiC[zero] == red.ChiC[zero] {
		t.Error("opacity should depend on reference wavelength")
	}
}

func TestLogTauToHeight(t *testing.T) {
	s := greyProfile()
	height, cmass, err := LogTauToHeight(eos.MustDefault(), s.LogTau, s.Temperature, s.Ne)
	if err != nil {
		t.Fatalf("LogTauToHeight failed: %v", err)
	}
	res, err := NewConverter(eos.MustDefault()).Convert(s)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	for k := range height {
		if height[k] != res.Height[k] || cmass[k] != res.ColumnMass[k] {
			t.Fatalf("point %d: (%g, %g) != (%g, %g)", k, height[k], cmass[k], res.Height[k], res.ColumnMass[k])
		}
	}

	if _, _, err := LogTauToHeight(eos.MustDefault(), nil, nil, nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func BenchmarkConvertGrey(b *testing.B) {
	s := greyProfile()
	c := NewConverter(eos.MustDefault())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Convert(s); err != nil {
			b.Fatal(err)
		}
	}
}
