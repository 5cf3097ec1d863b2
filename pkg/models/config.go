package models

import "time"

// ExportSettings controls the export pipeline.
type ExportSettings struct {
	MinCoverage    float64 `yaml:"min_coverage" mapstructure:"min_coverage"`
	EmitProvenance bool    `yaml:"emit_provenance" mapstructure:"emit_provenance"`
}

// ScanSettings bounds the existing-artifact directory scan.
type ScanSettings struct {
	MaxFiles int `yaml:"max_files" mapstructure:"max_files"`
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
}

// Gate1Settings holds the Gate 1 defaults.
type Gate1Settings struct {
	FailOnUnhealthy   bool `yaml:"fail_on_unhealthy" mapstructure:"fail_on_unhealthy"`
	RequireProvenance bool `yaml:"require_provenance" mapstructure:"require_provenance"`
}

// Gate2Settings holds the Gate 2 defaults.
type Gate2Settings struct {
	FailOnIssue bool `yaml:"fail_on_issue" mapstructure:"fail_on_issue"`
}

// ValidateSettings holds manifest validation defaults.
type ValidateSettings struct {
	Strict bool `yaml:"strict" mapstructure:"strict"`
}

// LogSettings configures diagnostic logging.
type LogSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ObservabilitySettings configures the run event log and alert thresholds.
type ObservabilitySettings struct {
	EventLog            bool    `yaml:"event_log" mapstructure:"event_log"`
	CoverageDropPercent float64 `yaml:"coverage_drop_percent" mapstructure:"coverage_drop_percent"`
	LookbackDays        int     `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// PipelineConfig is the merged configuration of a contextcore invocation.
// Precedence: flags > environment > .contextcore.yaml > global config > defaults.
type PipelineConfig struct {
	Export        ExportSettings        `yaml:"export" mapstructure:"export"`
	Scan          ScanSettings          `yaml:"scan" mapstructure:"scan"`
	Gate1         Gate1Settings         `yaml:"gate1" mapstructure:"gate1"`
	Gate2         Gate2Settings         `yaml:"gate2" mapstructure:"gate2"`
	Validate      ValidateSettings      `yaml:"validate" mapstructure:"validate"`
	Timeout       time.Duration         `yaml:"timeout" mapstructure:"timeout"`
	Log           LogSettings           `yaml:"log" mapstructure:"log"`
	Observability ObservabilitySettings `yaml:"observability" mapstructure:"observability"`
}
