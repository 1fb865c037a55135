package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
)

func TestRequireDomain(t *testing.T) {
	matcher, err := hostmatch.New([]string{"example.com", "example"})
	if err != nil {
		t.Fatalf("hostmatch.New() error = %v", err)
	}

	tests := []struct {
		name       string
		host       string
		wantStatus int
		wantFinal  string
		wantResult string
	}{
		{"exact domain", "example.com", http.StatusOK, "example.com", "matched"},
		{"dev suffix stripped", "example.dev", http.StatusOK, "example", "matched"},
		{"with port", "example.com:8000", http.StatusOK, "example.com", "matched"},
		{"unknown", "other.com", http.StatusNotFound, "", "rejected"},
		{"suffix not stripped mid-name", "example.dev.com", http.StatusNotFound, "", "rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			e := echo.New()
			e.Use(RequireDomain(matcher, m, discardLogger()))

			var gotFinal string
			e.GET("/api/host", func(c echo.Context) error {
				gotFinal, _ = c.Get(ContextKeyFinalHost).(string)
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/host", http.NoBody)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotFinal != tt.wantFinal {
				t.Errorf("final host = %q, want %q", gotFinal, tt.wantFinal)
			}
			if findMetric(t, m, "ballast_domain_matches_total", map[string]string{"result": tt.wantResult}) == nil {
				t.Errorf("expected ballast_domain_matches_total with result=%s", tt.wantResult)
			}
		})
	}
}

func TestRequireDomain_RejectionEnvelope(t *testing.T) {
	matcher, err := hostmatch.NewSingle("example.com")
	if err != nil {
		t.Fatalf("hostmatch.NewSingle() error = %v", err)
	}

	e := echo.New()
	e.Use(RequireDomain(matcher, nil, discardLogger()))
	e.GET("/api/host", func(c echo.Context) error {
		t.Error("handler should not run for a rejected host")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/api/host?callback=cb", http.NoBody)
	req.Host = "other.com"
	req.Header.Set(echo.HeaderAccept, "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body struct {
		Status int            `json:"status"`
		Data   map[string]any `json:"data"`
		Error  string         `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v (%q)", err, rec.Body.String())
	}
	if body.Status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", body.Status, http.StatusNotFound)
	}
	if body.Error != "unknown host" {
		t.Errorf("error = %q, want %q", body.Error, "unknown host")
	}
}
