package endpoints

import (
	"github.com/docbench/docbench/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Run endpoints
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
		&DeleteRunEndpoint{},
		&ReportEndpoint{},
		&RescoreEndpoint{},

		// Pipeline endpoints
		&ListPipelinesEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}
