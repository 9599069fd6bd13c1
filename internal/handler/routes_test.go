package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	e, _ := newTestEcho(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	}))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /", http.MethodGet, "/", http.StatusOK},
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK},
		{"GET /jsdelivr/*", http.MethodGet, "/jsdelivr/npm/a@1/a.js", http.StatusOK},
		{"GET /package/*", http.MethodGet, "/package/a@1/a.js", http.StatusOK},
		{"GET /fonts/css", http.MethodGet, "/fonts/css?family=Lato", http.StatusOK},
		{"GET /fonts/css2", http.MethodGet, "/fonts/css2?family=Lato", http.StatusOK},
		{"GET /fonts/s/*", http.MethodGet, "/fonts/s/lato/v1/a.ttf", http.StatusOK},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"POST /jsdelivr/* not allowed", http.MethodPost, "/jsdelivr/npm/a@1/a.js", http.StatusMethodNotAllowed},
		{"GET /fonts/css3 unknown", http.MethodGet, "/fonts/css3", http.StatusNotFound},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterMetrics_Exposition(t *testing.T) {
	e, _ := newTestEcho(t, http.NotFoundHandler())

	rec := get(e, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output does not include the go collector")
	}
}
