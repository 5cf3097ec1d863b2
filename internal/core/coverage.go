package core

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// CoverageBelowThresholdError is returned by an export whose coverage is
// under the configured minimum. Nothing is promoted when it occurs.
type CoverageBelowThresholdError struct {
	Project   string
	Percent   float64
	Threshold float64
	Gaps      []string
}

func (e *CoverageBelowThresholdError) Error() string {
	return fmt.Sprintf("coverage for %s is %.1f%%, below the required %.1f%% (%d gaps)",
		e.Project, e.Percent, e.Threshold, len(e.Gaps))
}

// coveragePercent is existing / counted * 100 clamped to [0, 100]; nothing
// to cover counts as fully covered.
func coveragePercent(existing, counted int) float64 {
	if counted <= 0 {
		return 100
	}
	p := float64(existing) / float64(counted) * 100
	p = math.Round(p*10) / 10
	return math.Max(0, math.Min(100, p))
}

// ScoreCoverage diffs requirements against existing artifacts, an id -> path
// map. Existing entries that match no requirement are ignored. Waived
// requirements are tallied but never reported as gaps.
func ScoreCoverage(reqs []models.ArtifactRequirement, existing map[string]string) models.CoverageReport {
	report := models.CoverageReport{
		ByType:   make(map[models.ArtifactType]models.CoverageCounts),
		Existing: make(map[string]string),
	}
	report.Overall.Gaps = []string{}

	for _, t := range models.ArtifactTypes {
		report.ByType[t] = models.CoverageCounts{Gaps: []string{}}
	}

	for _, r := range reqs {
		if !r.Required {
			continue
		}
		tc := report.ByType[r.Type]
		switch {
		case r.Waived:
			tc.Waived++
			report.Overall.Waived++
		default:
			tc.Required++
			report.Overall.Required++
			if p, ok := existing[r.ID]; ok {
				tc.Existing++
				report.Overall.Existing++
				report.Existing[r.ID] = p
			} else {
				tc.Gaps = append(tc.Gaps, r.ID)
				report.Overall.Gaps = append(report.Overall.Gaps, r.ID)
			}
		}
		report.ByType[r.Type] = tc
	}

	for t, tc := range report.ByType {
		tc.Percent = coveragePercent(tc.Existing, tc.Required)
		report.ByType[t] = tc
	}
	report.Overall.Percent = coveragePercent(report.Overall.Existing, report.Overall.Required)
	return report
}

// CheckCoverageThreshold returns a CoverageBelowThresholdError when the
// overall percentage is under min.
func CheckCoverageThreshold(project string, report models.CoverageReport, min float64) error {
	if min <= 0 || report.Overall.Percent >= min {
		return nil
	}
	return &CoverageBelowThresholdError{
		Project:   project,
		Percent:   report.Overall.Percent,
		Threshold: min,
		Gaps:      report.Overall.Gaps,
	}
}

// IndexExisting matches scanned file paths to requirement ids using the
// {target}-{type}.* naming convention. Extensions are stripped one at a time
// so "api-dashboard.grafana.json" matches "api-dashboard". When several files
// match one id, the first in the given order wins.
func IndexExisting(reqs []models.ArtifactRequirement, files []string) map[string]string {
	known := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		known[r.ID] = true
	}

	out := make(map[string]string)
	for _, f := range files {
		name := path.Base(strings.ReplaceAll(f, "\\", "/"))
		for name != "" {
			if known[name] {
				if _, dup := out[name]; !dup {
					out[name] = f
				}
				break
			}
			ext := path.Ext(name)
			if ext == "" {
				break
			}
			name = strings.TrimSuffix(name, ext)
		}
	}
	return out
}

// MergeExisting combines id -> path maps; earlier maps win on conflict.
func MergeExisting(sources ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, src := range sources {
		for id, p := range src {
			if _, ok := out[id]; !ok {
				out[id] = p
			}
		}
	}
	return out
}
