// Package core contains the business logic of contextcore: manifest parsing
// and validation, observability derivation, artifact requirements, coverage,
// provenance, the export pipeline and both integrity gates.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// Config file names. The global file lives under the contextcore home
// directory; the project file is looked up in the working directory.
const (
	globalConfigName  = "config"
	projectConfigName = ".contextcore"
	envPrefix         = "CONTEXTCORE"
)

// ConfigurationManager loads, merges and validates pipeline configuration.
type ConfigurationManager interface {
	LoadConfig(workDir string) (*models.PipelineConfig, error)
	ValidateConfig(cfg *models.PipelineConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	// basePath is the contextcore home directory holding config.yaml.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads the
// global config.yaml from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a PipelineConfig populated with defaults.
func DefaultConfig() *models.PipelineConfig {
	return &models.PipelineConfig{
		Export: models.ExportSettings{
			MinCoverage:    0,
			EmitProvenance: true,
		},
		Scan: models.ScanSettings{
			MaxFiles: 10000,
			MaxDepth: 16,
		},
		Timeout: 5 * time.Minute,
		Log: models.LogSettings{
			Level:  "warn",
			Format: "text",
		},
		Observability: models.ObservabilitySettings{
			EventLog:     true,
			LookbackDays: 7,
		},
	}
}

func setDefaults(v *viper.Viper, cfg *models.PipelineConfig) {
	v.SetDefault("export.min_coverage", cfg.Export.MinCoverage)
	v.SetDefault("export.emit_provenance", cfg.Export.EmitProvenance)
	v.SetDefault("scan.max_files", cfg.Scan.MaxFiles)
	v.SetDefault("scan.max_depth", cfg.Scan.MaxDepth)
	v.SetDefault("gate1.fail_on_unhealthy", cfg.Gate1.FailOnUnhealthy)
	v.SetDefault("gate1.require_provenance", cfg.Gate1.RequireProvenance)
	v.SetDefault("gate2.fail_on_issue", cfg.Gate2.FailOnIssue)
	v.SetDefault("validate.strict", cfg.Validate.Strict)
	v.SetDefault("timeout", cfg.Timeout.String())
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("observability.event_log", cfg.Observability.EventLog)
	v.SetDefault("observability.coverage_drop_percent", cfg.Observability.CoverageDropPercent)
	v.SetDefault("observability.lookback_days", cfg.Observability.LookbackDays)
}

// LoadConfig merges defaults, the global config, the project config found in
// workDir and CONTEXTCORE_* environment variables. Missing files are not an
// error. Command-line flags are applied on top by the caller.
func (cm *viperConfigManager) LoadConfig(workDir string) (*models.PipelineConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	if cm.basePath != "" {
		v.SetConfigName(globalConfigName)
		v.AddConfigPath(cm.basePath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading global config in %s: %w", cm.basePath, err)
			}
		}
	}

	if workDir != "" {
		pv := viper.New()
		pv.SetConfigType("yaml")
		pv.SetConfigName(projectConfigName)
		pv.AddConfigPath(workDir)
		if err := pv.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading %s.yaml in %s: %w", projectConfigName, workDir, err)
			}
		} else if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg.Export.MinCoverage = v.GetFloat64("export.min_coverage")
	cfg.Export.EmitProvenance = v.GetBool("export.emit_provenance")
	cfg.Scan.MaxFiles = v.GetInt("scan.max_files")
	cfg.Scan.MaxDepth = v.GetInt("scan.max_depth")
	cfg.Gate1.FailOnUnhealthy = v.GetBool("gate1.fail_on_unhealthy")
	cfg.Gate1.RequireProvenance = v.GetBool("gate1.require_provenance")
	cfg.Gate2.FailOnIssue = v.GetBool("gate2.fail_on_issue")
	cfg.Validate.Strict = v.GetBool("validate.strict")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Observability.EventLog = v.GetBool("observability.event_log")
	cfg.Observability.CoverageDropPercent = v.GetFloat64("observability.coverage_drop_percent")
	cfg.Observability.LookbackDays = v.GetInt("observability.lookback_days")

	timeout, err := time.ParseDuration(v.GetString("timeout"))
	if err != nil {
		return nil, fmt.Errorf("parsing timeout %q: %w", v.GetString("timeout"), err)
	}
	cfg.Timeout = timeout

	return cfg, nil
}

// validLogLevels is the set of accepted log.level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks every key and reports all problems at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.PipelineConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.Export.MinCoverage < 0 || cfg.Export.MinCoverage > 100 {
		errs = append(errs, fmt.Sprintf(
			"export.min_coverage %v is invalid, must be between 0 and 100",
			cfg.Export.MinCoverage,
		))
	}

	if cfg.Scan.MaxFiles <= 0 {
		errs = append(errs, fmt.Sprintf("scan.max_files must be positive, got %d", cfg.Scan.MaxFiles))
	}

	if cfg.Scan.MaxDepth <= 0 {
		errs = append(errs, fmt.Sprintf("scan.max_depth must be positive, got %d", cfg.Scan.MaxDepth))
	}

	if cfg.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("timeout must not be negative, got %s", cfg.Timeout))
	}

	if cfg.Observability.CoverageDropPercent < 0 {
		errs = append(errs, fmt.Sprintf(
			"observability.coverage_drop_percent must not be negative, got %v",
			cfg.Observability.CoverageDropPercent,
		))
	}

	if cfg.Observability.LookbackDays <= 0 {
		errs = append(errs, fmt.Sprintf(
			"observability.lookback_days must be positive, got %d",
			cfg.Observability.LookbackDays,
		))
	}

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Sprintf(
			"log.level %q is invalid, must be one of: debug, info, warn, error",
			cfg.Log.Level,
		))
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf(
			"log.format %q is invalid, must be one of: text, json",
			cfg.Log.Format,
		))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
