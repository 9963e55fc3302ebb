package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/star/depthscale/internal/atmos"
	"github.com/star/depthscale/internal/depth"
	"github.com/star/depthscale/internal/eos"
	"github.com/star/depthscale/internal/metrics"
)

type handlers struct {
	cfg     Config
	eos     eos.EOS
	lib     *atmos.Library
	limiter *conversionLimiter
	logger  *slog.Logger
}

type convertRequest struct {
	Name        string    `json:"name,omitempty"`
	LogTau      []float64 `json:"logtau"`
	Temperature []float64 `json:"temperature"`
	Ne          []float64 `json:"ne"`
	Wavelength  float64   `json:"wavelength,omitempty"`
}

type convertResponse struct {
	Name           string    `json:"name,omitempty"`
	Points         int       `json:"points"`
	Wavelength     float64   `json:"wavelength"`
	TauUnityHeight float64   `json:"tau_unity_height"`
	Height         []float64 `json:"height"`
	ColumnMass     []float64 `json:"cmass"`
	Tau            []float64 `json:"tau"`
	Pe             []float64 `json:"pe"`
	Pgas           []float64 `json:"pgas"`
	Rho            []float64 `json:"rho"`
	ChiC           []float64 `json:"chi_c"`
}

// convert handles POST /api/v1/convert.
func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)

	var req convertRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s := depth.Stratification{LogTau: req.LogTau, Temperature: req.Temperature, Ne: req.Ne}
	h.respondConversion(w, req.Name, s, req.Wavelength)
}

// convertModel handles GET /api/v1/models/{name}/convert[?wavelength=Å].
func (h *handlers) convertModel(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadModel(w, r.PathValue("name"))
	if !ok {
		return
	}

	var lambda float64
	if v := r.URL.Query().Get("wavelength"); v != "" {
		var err error
		lambda, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "wavelength must be a number in Å")
			return
		}
	}

	h.respondConversion(w, m.Name, m.Stratification(), lambda)
}

// respondConversion runs the converter and writes the result or the error.
// A zero wavelength selects the default reference wavelength.
func (h *handlers) respondConversion(w http.ResponseWriter, name string, s depth.Stratification, lambda float64) {
	if lambda == 0 {
		lambda = eos.DefaultWavelength
	}
	if !(lambda > 0) || math.IsInf(lambda, 0) {
		writeError(w, http.StatusBadRequest, "wavelength must be positive")
		return
	}
	if n := len(s.LogTau); n > h.cfg.MaxPoints {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      fmt.Sprintf("too many depth points: %d", n),
			"max_points": h.cfg.MaxPoints,
		})
		return
	}

	conv := depth.NewConverter(h.eos, depth.WithReferenceWavelength(lambda), depth.WithLogger(h.logger))
	res, err := conv.Convert(s)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if depth.IsInvalidInput(err) {
			status = http.StatusBadRequest
		}
		h.logger.Debug("conversion failed", "model", name, "error", err)
		writeError(w, status, err.Error())
		return
	}

	if !finite(res.Height) || !finite(res.ColumnMass) {
		writeError(w, http.StatusUnprocessableEntity, "conversion produced non-finite values")
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Name:           name,
		Points:         len(res.Height),
		Wavelength:     res.Wavelength,
		TauUnityHeight: res.TauUnityHeight,
		Height:         res.Height,
		ColumnMass:     res.ColumnMass,
		Tau:            res.Tau,
		Pe:             res.Pe,
		Pgas:           res.Pgas,
		Rho:            res.Rho,
		ChiC:           res.ChiC,
	})
}

func finite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// listModels handles GET /api/v1/models.
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	infos, err := h.lib.List()
	if err != nil {
		h.logger.Error("listing models failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing models failed")
		return
	}
	if infos == nil {
		infos = []atmos.Info{}
	}
	metrics.SetModelsStored(len(infos))
	writeJSON(w, http.StatusOK, map[string]any{"models": infos})
}

type modelResponse struct {
	Name        string    `json:"name"`
	LogTau      []float64 `json:"logtau"`
	Temperature []float64 `json:"temperature"`
	Ne          []float64 `json:"ne"`
}

// getModel handles GET /api/v1/models/{name}.
func (h *handlers) getModel(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadModel(w, r.PathValue("name"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, modelResponse{
		Name:        m.Name,
		LogTau:      m.LogTau,
		Temperature: m.Temperature,
		Ne:          m.Ne,
	})
}

// putModel handles PUT /api/v1/models/{name}. The body is a model table in
// the text format read by atmos.Parse.
func (h *handlers) putModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := atmos.CheckName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	m, err := atmos.Parse(r.Body, h.logger.With("model", name))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m.Name = name

	if err := m.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.Len() > h.cfg.MaxPoints {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many depth points: %d", m.Len()))
		return
	}

	if err := h.lib.Save(m); err != nil {
		h.logger.Error("saving model failed", "model", name, "error", err)
		writeError(w, http.StatusInternalServerError, "saving model failed")
		return
	}
	h.logger.Info("model stored", "model", name, "points", m.Len())

	writeJSON(w, http.StatusCreated, map[string]any{"name": name, "points": m.Len()})
}

func (h *handlers) loadModel(w http.ResponseWriter, name string) (*atmos.Model, bool) {
	m, err := h.lib.Load(name)
	switch {
	case err == nil:
		return m, true
	case errors.Is(err, atmos.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, atmos.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("loading model failed", "model", name, "error", err)
		writeError(w, http.StatusInternalServerError, "loading model failed")
	}
	return nil, false
}
