// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/docbench/docbench/internal/corpus"
	"github.com/docbench/docbench/internal/home"
	"github.com/docbench/docbench/internal/metrics"
	"github.com/docbench/docbench/internal/store"
	"github.com/docbench/docbench/internal/tools"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store        *store.Store
	Registry     *tools.Registry
	Suite        *metrics.Suite
	Corpus       *corpus.Loader
	Logger       *slog.Logger
	Home         *home.Dir
	PipelinesDir string
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the result store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// RegistryFrom extracts the tool registry from context.
func RegistryFrom(ctx context.Context) *tools.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// SuiteFrom extracts the scoring suite from context.
func SuiteFrom(ctx context.Context) *metrics.Suite {
	if s := ServicesFrom(ctx); s != nil {
		return s.Suite
	}
	return nil
}

// CorpusFrom extracts the corpus loader from context.
func CorpusFrom(ctx context.Context) *corpus.Loader {
	if s := ServicesFrom(ctx); s != nil {
		return s.Corpus
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// PipelinesDirFrom extracts the pipeline definitions directory from context.
// Returns "" if not present.
func PipelinesDirFrom(ctx context.Context) string {
	if s := ServicesFrom(ctx); s != nil {
		return s.PipelinesDir
	}
	return ""
}
