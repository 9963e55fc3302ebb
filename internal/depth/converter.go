// Package depth converts an atmosphere stratified in optical depth to
// geometric height and column mass.
//
// Method: the equation of state is evaluated pointwise, height is integrated
// with the trapezoidal rule dh = -dtau/chi, and the height scale is shifted so
// that height = 0 at tau = 1 at the reference wavelength.
package depth

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/star/depthscale/internal/eos"
	"github.com/star/depthscale/internal/metrics"
)

// Converter performs depth-scale conversions against one equation of state.
// It holds no mutable state; a single Converter may be shared.
type Converter struct {
	eos        eos.EOS
	wavelength float64
	logger     *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithReferenceWavelength sets the wavelength (Å) at which tau is defined.
func WithReferenceWavelength(lambda float64) Option {
	return func(c *Converter) {
		c.wavelength = lambda
	}
}

// WithLogger sets the logger used for per-conversion debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// NewConverter creates a Converter using e for pressures, density and opacity.
func NewConverter(e eos.EOS, opts ...Option) *Converter {
	c := &Converter{
		eos:        e,
		wavelength: eos.DefaultWavelength,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wavelength returns the reference wavelength in Å.
func (c *Converter) Wavelength() float64 {
	return c.wavelength
}

// LogTauToHeight converts with the given equation of state at 5000 Å and
// returns only height (cm) and column mass (g/cm²).
func LogTauToHeight(e eos.EOS, logTau, temperature, ne []float64) (height, cmass []float64, err error) {
	res, err := NewConverter(e).Convert(Stratification{
		LogTau:      logTau,
		Temperature: temperature,
		Ne:          ne,
	})
	if err != nil {
		return nil, nil, err
	}
	return res.Height, res.ColumnMass, nil
}

// Convert computes height and column mass for s.
// Equation-of-state failures are returned wrapped with the depth index.
// Input monotonicity is not checked.
func (c *Converter) Convert(s Stratification) (*Result, error) {
	start := time.Now()
	res, err := c.convert(s)
	metrics.RecordConversion(time.Since(start), len(s.LogTau), outcome(err))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("depth conversion complete",
		"points", len(res.Height),
		"wavelength", c.wavelength,
		"tau_unity_height_cm", res.TauUnityHeight,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsInvalidInput(err):
		return metrics.OutcomeInvalidInput
	default:
		return metrics.OutcomeEOSError
	}
}

func (c *Converter) convert(s Stratification) (*Result, error) {
	n := s.Len()
	switch {
	case n < 0:
		return nil, fmt.Errorf("%w: logtau=%d temperature=%d ne=%d",
			ErrShapeMismatch, len(s.LogTau), len(s.Temperature), len(s.Ne))
	case n == 0:
		return nil, ErrEmpty
	}

	res := &Result{
		Height:     make([]float64, n),
		ColumnMass: make([]float64, n),
		Tau:        make([]float64, n),
		Pe:         make([]float64, n),
		Pgas:       make([]float64, n),
		Rho:        make([]float64, n),
		ChiC:       make([]float64, n),
		Wavelength: c.wavelength,
	}

	// Pointwise equation of state.
	for k := 0; k < n; k++ {
		T := s.Temperature[k]
		pe := s.Ne[k] * eos.BK * T
		pgas, err := c.eos.GasPressure(T, pe)
		if err != nil {
			return nil, fmt.Errorf("depth %d: gas pressure: %w", k, err)
		}
		rho, err := c.eos.Density(T, pe)
		if err != nil {
			return nil, fmt.Errorf("depth %d: density: %w", k, err)
		}
		chi, err := c.eos.ContinuumOpacity(T, pgas, pe, c.wavelength)
		if err != nil {
			return nil, fmt.Errorf("depth %d: continuum opacity: %w", k, err)
		}
		res.Pe[k] = pe
		res.Pgas[k] = pgas
		res.Rho[k] = rho
		res.ChiC[k] = chi
		res.Tau[k] = math.Pow(10, s.LogTau[k])
	}

	// Trapezoidal integration from the top boundary.
	tau, chi, h, m := res.Tau, res.ChiC, res.Height, res.ColumnMass
	m[0] = tau[0] / chi[0] * res.Rho[0]
	for k := 1; k < n; k++ {
		chiSum := chi[k-1] + chi[k]
		h[k] = h[k-1] - 2*(tau[k]-tau[k-1])/chiSum
		m[k] = m[k-1] + 0.5*chiSum*(h[k-1]-h[k])
	}

	// Zero point at tau = 1.
	res.TauUnityHeight = Interp(1, tau, h)
	for k := range h {
		h[k] -= res.TauUnityHeight
	}

	return res, nil
}
