package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the docbench home directory.
	DefaultDirName = ".docbench"

	// CorpusDirName is the subdirectory for benchmark documents.
	CorpusDirName = "corpus"

	// GroundTruthDirName is the subdirectory for ground-truth annotation files.
	GroundTruthDirName = "ground_truth"

	// PipelinesDirName is the subdirectory for pipeline definition files.
	PipelinesDirName = "pipelines"

	// RunsDirName is the subdirectory for exported run artifacts.
	RunsDirName = "runs"

	// StoreFileName is the results database file name.
	StoreFileName = "docbench.db"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the docbench home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.docbench).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// CorpusPath returns the path to the corpus directory.
func (d *Dir) CorpusPath() string {
	return filepath.Join(d.path, CorpusDirName)
}

// GroundTruthPath returns the path to the ground-truth directory.
func (d *Dir) GroundTruthPath() string {
	return filepath.Join(d.path, GroundTruthDirName)
}

// PipelinesPath returns the path to the pipeline definitions directory.
func (d *Dir) PipelinesPath() string {
	return filepath.Join(d.path, PipelinesDirName)
}

// RunsPath returns the path to the exported run artifacts directory.
func (d *Dir) RunsPath() string {
	return filepath.Join(d.path, RunsDirName)
}

// RunPath returns the artifact directory for a specific run.
func (d *Dir) RunPath(runID string) string {
	return filepath.Join(d.RunsPath(), runID)
}

// ManifestPath returns the path to a run's exported manifest.
func (d *Dir) ManifestPath(runID string) string {
	return filepath.Join(d.RunPath(runID), "manifest.json")
}

// StorePath returns the path to the results database.
func (d *Dir) StorePath() string {
	return filepath.Join(d.path, StoreFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{
		d.CorpusPath(),
		d.GroundTruthPath(),
		d.PipelinesPath(),
		d.RunsPath(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureRunDir creates the artifact directory for a run.
func (d *Dir) EnsureRunDir(runID string) error {
	return os.MkdirAll(d.RunPath(runID), 0o755)
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
