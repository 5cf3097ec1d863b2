package core

import (
	"fmt"
	"maps"
	"slices"

	"github.com/valter-silva-au/contextcore/pkg/models"
)

// MigrateManifest lifts a v1alpha1 document to the current generation. The
// new sections start empty and a changelog entry records the migration. The
// source document is never modified; the result shares no memory with it.
func MigrateManifest(src *models.ManifestV1Alpha1) *models.Manifest {
	return &models.Manifest{
		APIVersion: models.CurrentAPIVersion,
		Kind:       src.Kind,
		Metadata:   copyMeta(src.Metadata),
		Spec:       copySpec(src.Spec),
		Changelog: []models.ChangelogEntry{{
			Version: string(models.CurrentAPIVersion),
			Note:    fmt.Sprintf("migrated from %s", models.APIVersionV1Alpha1),
		}},
	}
}

// liftToCurrent migrates any supported generation to the current one.
func liftToCurrent(doc models.VersionedManifest) (*models.Manifest, error) {
	switch d := doc.(type) {
	case *models.Manifest:
		return d, nil
	case *models.ManifestV1Alpha1:
		return MigrateManifest(d), nil
	default:
		return nil, fmt.Errorf("no migration path from %s", doc.GetAPIVersion())
	}
}

func copyMeta(m models.ObjectMeta) models.ObjectMeta {
	m.Labels = maps.Clone(m.Labels)
	m.Annotations = maps.Clone(m.Annotations)
	return m
}

func copySpec(s models.ProjectSpec) models.ProjectSpec {
	s.Targets = slices.Clone(s.Targets)
	s.Risks = slices.Clone(s.Risks)

	o := s.Observability
	if o.TraceSampling != nil {
		v := *o.TraceSampling
		o.TraceSampling = &v
	}
	o.AlertChannels = slices.Clone(o.AlertChannels)
	o.ArtifactDepth = maps.Clone(o.ArtifactDepth)
	o.Waivers = slices.Clone(o.Waivers)
	s.Observability = o

	return s
}
