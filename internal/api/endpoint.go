package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint pairs an HTTP route with the CLI command that calls it, so each
// API operation is declared in exactly one place.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler for this endpoint.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the endpoint needs the server
	// to be fully initialized (store open, tool registry loaded).
	// Probe endpoints answer before that point.
	RequiresInit() bool

	// Command returns a Cobra command that calls this endpoint via HTTP.
	// getServerURL is invoked at run time so the --server flag has been
	// parsed by then.
	Command(getServerURL func() string) *cobra.Command
}
