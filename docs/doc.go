// Package docs holds the generated OpenAPI documentation for the Docbench
// API. The swagger/ subpackage is produced by swag; regenerate it after
// changing endpoint annotations.
package docs

//go:generate swag init -g ../cmd/docbench/serve.go -o ./swagger --parseDependency --parseInternal
