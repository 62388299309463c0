package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/escalator/internal/infra/rpc/provider"
)

type stubProvider struct {
	*provider.BaseProvider
}

func (s stubProvider) Close() error { return nil }

func newStub(name string) stubProvider {
	return stubProvider{provider.NewBaseProvider(name)}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthy(t *testing.T) {
	p := newStub("primary")
	p.RecordSuccess(10 * time.Millisecond)
	s := NewServer(":0", p)

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestServer_CriticalWhenProviderDown(t *testing.T) {
	up := newStub("primary")
	up.RecordSuccess(time.Millisecond)
	down := newStub("backup")
	down.RecordFailure(errors.New("connection refused"))
	s := NewServer(":0", up, down)

	rec := get(t, s.Handler(), "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", rec.Code)
	}

	rec = get(t, s.Handler(), "/health/detailed")
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != StatusCritical || len(report.Providers) != 2 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Providers["backup"].LastError != "connection refused" {
		t.Errorf("last error missing from report")
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(":0")
	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
}
