package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/star/depthscale/internal/atmos"
	"github.com/star/depthscale/internal/auth"
	"github.com/star/depthscale/internal/eos"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testServer(t *testing.T, cfg Config) (http.Handler, *atmos.Library) {
	t.Helper()
	lib := atmos.NewLibrary(t.TempDir(), 10, testLogger())
	srv := NewServer(":0", testLogger(), cfg, eos.MustDefault(), lib)
	return srv.Handler(), lib
}

const greyTable = `# name: grey
-3.0  4650.0  1.0e12
-2.0  4700.0  3.0e12
-1.0  5100.0  1.0e13
 0.0  6200.0  3.5e13
 1.0  8600.0  3.0e14
`

func do(h http.Handler, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestConvertEndpoint(t *testing.T) {
	h, _ := testServer(t, DefaultConfig())

	body := `{"logtau":[-2,-1,0,1],"temperature":[4700,5100,6200,8600],"ne":[3e12,1e13,3.5e13,3e14]}`
	w := do(h, "POST", "/api/v1/convert", strings.NewReader(body), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}

	var resp convertResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Points != 4 || len(resp.Height) != 4 || len(resp.ColumnMass) != 4 {
		t.Fatalf("response has %d points, %d heights", resp.Points, len(resp.Height))
	}
	if resp.Wavelength != eos.DefaultWavelength {
		t.Errorf("wavelength = %g, want default", resp.Wavelength)
	}
	if math.Abs(resp.Height[2]) > 1e-6 {
		t.Errorf("height at logtau=0 = %g, want 0", resp.Height[2])
	}
	for k := 1; k < 4; k++ {
		if resp.Height[k] > resp.Height[k-1] || resp.ColumnMass[k] < resp.ColumnMass[k-1] {
			t.Errorf("non-monotonic scales at %d", k)
		}
	}
}

func TestConvertEndpointErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPoints = 3
	cfg.MaxBodyBytes = 512
	h, _ := testServer(t, cfg)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", `{"logtau":`, http.StatusBadRequest},
		{"unknown field", `{"logtau":[0],"temperature":[5000],"ne":[1e13],"extra":1}`, http.StatusBadRequest},
		{"length mismatch", `{"logtau":[-1,0],"temperature":[5000],"ne":[1e13,1e14]}`, http.StatusBadRequest},
		{"empty", `{"logtau":[],"temperature":[],"ne":[]}`, http.StatusBadRequest},
		{"too many points", `{"logtau":[-3,-2,-1,0],"temperature":[5000,5000,5000,5000],"ne":[1,1,1,1]}`, http.StatusBadRequest},
		{"negative wavelength", `{"logtau":[0],"temperature":[5000],"ne":[1e13],"wavelength":-1}`, http.StatusBadRequest},
		{"non-physical temperature", `{"logtau":[-1,0],"temperature":[5000,-5],"ne":[1e13,1e14]}`, http.StatusUnprocessableEntity},
		{"zero electron density", `{"logtau":[0],"temperature":[5000],"ne":[0]}`, http.StatusUnprocessableEntity},
		{"body too large", `{"logtau":[` + strings.Repeat("0,", 400) + `0]}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, "POST", "/api/v1/convert", strings.NewReader(tt.body), nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp map[string]any
			json.NewDecoder(w.Body).Decode(&resp)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
		})
	}
}

// failingEOS stands in for an equation of state that fails with its own
// error type rather than the eos package sentinels.
type failingEOS struct{}

var errSolverDiverged = errors.New("solver diverged")

func (failingEOS) GasPressure(T, pe float64) (float64, error) { return 0, errSolverDiverged }
func (failingEOS) Density(T, pe float64) (float64, error) { return 0, errSolverDiverged }
func (failingEOS) ContinuumOpacity(T, pgas, pe, lambda float64) (float64, error) {
	return 0, errSolverDiverged
}

func TestConvertForeignEOSError(t *testing.T) {
	lib := atmos.NewLibrary(t.TempDir(), 10, testLogger())
	h := NewServer(":0", testLogger(), DefaultConfig(), failingEOS{}, lib).Handler()

	body := `{"logtau":[-1,0],"temperature":[5000,6000],"ne":[1e13,1e14]}`
	w := do(h, "POST", "/api/v1/convert", strings.NewReader(body), nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 (body %s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "solver diverged") {
		t.Errorf("body %s does not carry the EOS error", w.Body.String())
	}

	// Shape errors stay client errors whatever the EOS.
	w = do(h, "POST", "/api/v1/convert", strings.NewReader(`{"logtau":[0],"temperature":[],"ne":[1]}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("shape mismatch status = %d, want 400", w.Code)
	}
}

func TestModelLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth = auth.Config{Enabled: true, Token: "tok"}
	h, _ := testServer(t, cfg)

	// Writes need the token.
	w := do(h, "PUT", "/api/v1/models/grey", strings.NewReader(greyTable), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated PUT status = %d, want 401", w.Code)
	}

	w = do(h, "PUT", "/api/v1/models/grey", strings.NewReader(greyTable), map[string]string{"Authorization": "Bearer tok"})
	if w.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(h, "GET", "/api/v1/models", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Models []atmos.Info `json:"models"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(list.Models) != 1 || list.Models[0].Name != "grey" || list.Models[0].Points != 5 {
		t.Fatalf("list = %+v", list.Models)
	}

	w = do(h, "GET", "/api/v1/models/grey", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = do(h, "GET", "/api/v1/models/grey/convert?wavelength=6000", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("convert status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp convertResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Name != "grey" || resp.Wavelength != 6000 || resp.Points != 5 {
		t.Errorf("response name=%q wavelength=%g points=%d", resp.Name, resp.Wavelength, resp.Points)
	}
}

func TestModelErrors(t *testing.T) {
	h, lib := testServer(t, DefaultConfig())
	if err := lib.Save(&atmos.Model{
		Name: "ok", LogTau: []float64{0}, Temperature: []float64{6000}, Ne: []float64{1e13},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"missing model", "GET", "/api/v1/models/nope", "", http.StatusNotFound},
		{"missing model convert", "GET", "/api/v1/models/nope/convert", "", http.StatusNotFound},
		{"bad wavelength", "GET", "/api/v1/models/ok/convert?wavelength=blue", "", http.StatusBadRequest},
		{"invalid name", "PUT", "/api/v1/models/.hidden", greyTable, http.StatusBadRequest},
		{"empty model", "PUT", "/api/v1/models/empty", "# nothing\n", http.StatusBadRequest},
		{"descending logtau", "PUT", "/api/v1/models/bad", "0 5000 1e13\n-1 5000 1e13\n", http.StatusBadRequest},
		{"NaN logtau", "PUT", "/api/v1/models/nan", "-1 5000 1e13\nNaN 5500 2e13\n", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			}
			w := do(h, tt.method, tt.path, body, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestProbes(t *testing.T) {
	h, _ := testServer(t, DefaultConfig())

	for _, path := range []string{"/healthz", "/readyz"} {
		w := do(h, "GET", path, nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}

	w := do(h, "GET", "/metrics", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "depthscale_http_requests_total") {
		t.Errorf("metrics status = %d, missing request counter", w.Code)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	h, _ := testServer(t, DefaultConfig())
	const id = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

	w := do(h, "GET", "/healthz", nil, map[string]string{requestIDHeader: id})
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("request id = %q, want %q", got, id)
	}

	w = do(h, "GET", "/healthz", nil, map[string]string{requestIDHeader: "not-a-uuid"})
	if got := w.Header().Get(requestIDHeader); got == "not-a-uuid" || got == "" {
		t.Errorf("invalid request id should be replaced, got %q", got)
	}
}
