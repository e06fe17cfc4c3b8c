package config

import (
	"time"

	"github.com/docbench/docbench/internal/home"
)

// Config holds docbench configuration.
// Stored at: ~/.docbench/config.yaml
type Config struct {
	Paths    PathsCfg           `mapstructure:"paths" yaml:"paths"`
	Run      RunCfg             `mapstructure:"run" yaml:"run"`
	Metrics  MetricsCfg         `mapstructure:"metrics" yaml:"metrics"`
	Tools    map[string]ToolCfg `mapstructure:"tools" yaml:"tools"`
	Toolhost ToolhostCfg        `mapstructure:"toolhost" yaml:"toolhost"`
	Server   ServerCfg          `mapstructure:"server" yaml:"server"`
}

// PathsCfg locates corpus inputs and the results store.
// Empty values fall back to the docbench home directory layout.
type PathsCfg struct {
	CorpusDir      string `mapstructure:"corpus_dir" yaml:"corpus_dir"`           // Benchmark documents
	GroundTruthDir string `mapstructure:"ground_truth_dir" yaml:"ground_truth_dir"` // Ground-truth annotation files
	PipelinesDir   string `mapstructure:"pipelines_dir" yaml:"pipelines_dir"`     // Pipeline definition files
	StorePath      string `mapstructure:"store_path" yaml:"store_path"`           // Results database file
}

// RunCfg controls sweep execution.
type RunCfg struct {
	Concurrency         int      `mapstructure:"concurrency" yaml:"concurrency"`                     // Max concurrent pipeline/document units
	StageTimeoutSeconds int      `mapstructure:"stage_timeout_seconds" yaml:"stage_timeout_seconds"` // Per-stage tool timeout
	Categories          []string `mapstructure:"categories" yaml:"categories"`                       // Document types to include (empty = all)
	DocumentLimit       int      `mapstructure:"document_limit" yaml:"document_limit"`               // Per-category document cap (0 = no cap)
}

// MetricsCfg controls scoring.
type MetricsCfg struct {
	MinIoU float64 `mapstructure:"min_iou" yaml:"min_iou"` // Block-matching overlap threshold
}

// ToolCfg configures a tool backend.
type ToolCfg struct {
	Type     string  `mapstructure:"type" yaml:"type"`           // "mock", "pdftext", "vlm", "remote"
	Model    string  `mapstructure:"model" yaml:"model"`         // Model name (for vlm)
	APIKey   string  `mapstructure:"api_key" yaml:"api_key"`     // API key (supports ${ENV_VAR} syntax)
	BaseURL  string  `mapstructure:"base_url" yaml:"base_url"`   // Service endpoint (for remote; optional vlm override)
	CostUSD  float64 `mapstructure:"cost_usd" yaml:"cost_usd"`   // Per-request cost for backends that cannot self-report
	MaxRetry int     `mapstructure:"max_retry" yaml:"max_retry"` // Transport retries (for remote)
	Enabled  bool    `mapstructure:"enabled" yaml:"enabled"`
}

// ToolhostCfg holds the self-hosted tool service definitions.
type ToolhostCfg struct {
	Services map[string]ServiceCfg `mapstructure:"services" yaml:"services"`
}

// ServiceCfg holds one tool service container configuration.
type ServiceCfg struct {
	// Image is the Docker image to run
	Image string `mapstructure:"image" yaml:"image"`
	// ContainerName is the Docker container name (default: docbench-<service>)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Port is the host port to bind
	Port string `mapstructure:"port" yaml:"port"`
	// ContainerPort is the port the service listens on inside the container
	ContainerPort string `mapstructure:"container_port" yaml:"container_port"`
	// HealthPath is the HTTP path polled until the service is ready
	HealthPath string `mapstructure:"health_path" yaml:"health_path"`
	// Env passes extra environment variables to the container (values support ${ENV_VAR} syntax)
	Env map[string]string `mapstructure:"env" yaml:"env"`
}

// ServerCfg holds HTTP server settings for serve mode.
type ServerCfg struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string `mapstructure:"host" yaml:"host"`
	// Port is the port to listen on (default: 8080)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Run: RunCfg{
			Concurrency:         4,
			StageTimeoutSeconds: 300,
		},
		Metrics: MetricsCfg{
			MinIoU: 0.5,
		},
		Tools: map[string]ToolCfg{
			"mock": {
				Type:    "mock",
				Enabled: true,
			},
			"pdftext": {
				Type:    "pdftext",
				Enabled: true,
			},
			"vlm": {
				Type:    "vlm",
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: false,
			},
		},
		Toolhost: ToolhostCfg{
			Services: map[string]ServiceCfg{},
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}

// GetTool returns a tool backend config by name.
func (c *Config) GetTool(name string) (ToolCfg, bool) {
	cfg, ok := c.Tools[name]
	return cfg, ok
}

// EnabledTools returns all enabled tool backends.
func (c *Config) EnabledTools() map[string]ToolCfg {
	result := make(map[string]ToolCfg)
	for name, cfg := range c.Tools {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// GetService returns a toolhost service config by name.
func (c *Config) GetService(name string) (ServiceCfg, bool) {
	cfg, ok := c.Toolhost.Services[name]
	return cfg, ok
}

// StageTimeout returns the per-stage tool timeout as a duration.
// Zero means the executor default applies.
func (c *Config) StageTimeout() time.Duration {
	if c.Run.StageTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Run.StageTimeoutSeconds) * time.Second
}

// ResolvedPaths is the paths section with every empty entry replaced by its
// home directory default.
type ResolvedPaths struct {
	CorpusDir      string
	GroundTruthDir string
	PipelinesDir   string
	StorePath      string
}

// ResolvePaths fills unset path entries from the home directory layout.
func (c *Config) ResolvePaths(h *home.Dir) ResolvedPaths {
	p := ResolvedPaths{
		CorpusDir:      c.Paths.CorpusDir,
		GroundTruthDir: c.Paths.GroundTruthDir,
		PipelinesDir:   c.Paths.PipelinesDir,
		StorePath:      c.Paths.StorePath,
	}
	if p.CorpusDir == "" {
		p.CorpusDir = h.CorpusPath()
	}
	if p.GroundTruthDir == "" {
		p.GroundTruthDir = h.GroundTruthPath()
	}
	if p.PipelinesDir == "" {
		p.PipelinesDir = h.PipelinesPath()
	}
	if p.StorePath == "" {
		p.StorePath = h.StorePath()
	}
	return p
}
