package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FindConfig mirrors the find command's flags as a YAML document, so a
// problem set can be kept under version control and re-run.
type FindConfig struct {
	Geometry      string  `yaml:"geometry"`
	Constraints   string  `yaml:"constraints,omitempty"`
	ForceHP       string  `yaml:"force_hp,omitempty"`
	Deterministic bool    `yaml:"deterministic,omitempty"`
	TimeSeconds   float64 `yaml:"time_s,omitempty"`
	Descents      uint32  `yaml:"descents,omitempty"`
	RunsPerKernel uint32  `yaml:"runs_per_kernel,omitempty"`
	SummaryStat   string  `yaml:"summary_stat,omitempty"`
	Seed          int64   `yaml:"seed,omitempty"`
	Device        string  `yaml:"device,omitempty"`
}

// applyFindConfig loads a YAML config and overwrites the corresponding
// flag variables. Flags given on the command line alongside --config are
// overwritten too: the file is the source of truth for a configured run.
func applyFindConfig(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("Error reading config %s: %v", path, err)
	}
	var cfg FindConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Fatalf("Error parsing config %s: %v", path, err)
	}

	if cfg.Geometry != "" {
		geometryString = cfg.Geometry
	}
	if cfg.Constraints != "" {
		constraints = cfg.Constraints
	}
	if cfg.ForceHP != "" {
		forcedHP = cfg.ForceHP
	}
	if cfg.Deterministic {
		deterministic = true
	}
	if cfg.TimeSeconds > 0 {
		allottedTimeS = cfg.TimeSeconds
	}
	if cfg.Descents > 0 {
		descents = cfg.Descents
	}
	if cfg.RunsPerKernel > 0 {
		runsPerKernel = cfg.RunsPerKernel
	}
	if cfg.SummaryStat != "" {
		summaryStat = cfg.SummaryStat
	}
	if cfg.Seed != 0 {
		seed = cfg.Seed
	}
	if cfg.Device != "" {
		device = cfg.Device
	}
	logrus.Infof("Using find configuration from %s", path)
}
