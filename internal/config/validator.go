package config

import (
	"fmt"
	"runtime"
)

// Validator validates configuration and applies smart defaults, matching
// the teacher's separate-validate-then-default pass over a Config.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and fills in any field a partial
// KDL override left at its zero value.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Project.Root == "" {
		return fmt.Errorf("config: project root cannot be empty")
	}
	if cfg.Index.ManifestName == "" {
		cfg.Index.ManifestName = DefaultManifestName
	}
	if cfg.Index.DBName == "" {
		cfg.Index.DBName = DefaultDBName
	}
	if cfg.Index.WatchDebounceMs <= 0 {
		cfg.Index.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if cfg.Performance.Jobs <= 0 {
		cfg.Performance.Jobs = 1
	}
	if cfg.Performance.Jobs > runtime.NumCPU()*4 {
		return fmt.Errorf("config: jobs=%d is unreasonably large for %d CPUs", cfg.Performance.Jobs, runtime.NumCPU())
	}
	return nil
}
