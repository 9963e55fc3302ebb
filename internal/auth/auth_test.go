package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
	}{
		{"health exempt", "GET", "/healthz", "", http.StatusOK},
		{"metrics exempt", "GET", "/metrics", "", http.StatusOK},
		{"model list exempt", "GET", "/api/v1/models", "", http.StatusOK},
		{"stored model convert public", "GET", "/api/v1/models/falc/convert", "", http.StatusOK},
		{"convert needs token", "POST", "/api/v1/convert", "", http.StatusUnauthorized},
		{"model write needs token", "PUT", "/api/v1/models/falc", "", http.StatusUnauthorized},
		{"wrong token", "POST", "/api/v1/convert", "Bearer nope", http.StatusUnauthorized},
		{"missing bearer prefix", "POST", "/api/v1/convert", "s3cret", http.StatusUnauthorized},
		{"valid token", "POST", "/api/v1/convert", "Bearer s3cret", http.StatusOK},
		{"valid token on write", "PUT", "/api/v1/models/falc", "Bearer s3cret", http.StatusOK},
		{"scheme is case-insensitive", "POST", "/api/v1/convert", "bearer s3cret", http.StatusOK},
		{"empty token", "POST", "/api/v1/convert", "Bearer ", http.StatusUnauthorized},
		{"basic scheme rejected", "POST", "/api/v1/convert", "Basic s3cret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate challenge")
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	called := false
	handler := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/api/v1/models/x", nil))
	if !called {
		t.Error("disabled auth should pass requests through")
	}
}
