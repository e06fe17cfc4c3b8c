package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
)

// fakeEndpoint is a minimal Endpoint for registry tests.
type fakeEndpoint struct {
	method       string
	path         string
	requiresInit bool
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled " + e.path))
	}
}

func (e *fakeEndpoint) RequiresInit() bool { return e.requiresInit }

func (e *fakeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{Use: "fake"}
}

func TestRegistry_RegisterRoutes(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeEndpoint{method: "GET", path: "/open"})
	reg.Register(&fakeEndpoint{method: "GET", path: "/gated", requiresInit: true})

	// Middleware rejects gated routes until initialized.
	initialized := false
	initMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !initialized {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, initMiddleware)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("/open"); code != http.StatusOK {
		t.Errorf("GET /open = %d, want 200", code)
	}
	if code := get("/gated"); code != http.StatusServiceUnavailable {
		t.Errorf("GET /gated before init = %d, want 503", code)
	}

	initialized = true
	if code := get("/gated"); code != http.StatusOK {
		t.Errorf("GET /gated after init = %d, want 200", code)
	}
}

func TestRegistry_MethodMatters(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeEndpoint{method: "DELETE", path: "/api/runs/{id}"})

	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// GET on a DELETE-only route is rejected by the mux.
	resp, err := http.Get(srv.URL + "/api/runs/r1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET on DELETE route = %d, want 405", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/runs/r1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("DELETE = %d, want 200", resp.StatusCode)
	}
}
