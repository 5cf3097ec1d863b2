package core

import (
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// GenerateRequirements expands a manifest into one requirement per
// (target, artifact type), targets in manifest order and types in canonical
// order. Declared waivers mark matching required artifacts as waived.
func GenerateRequirements(m *models.Manifest) []models.ArtifactRequirement {
	waivers := make(map[string]string, len(m.Spec.Observability.Waivers))
	for _, w := range m.Spec.Observability.Waivers {
		waivers[models.ArtifactID(w.Target, w.Type)] = w.Reason
	}

	reqs := make([]models.ArtifactRequirement, 0, len(m.Spec.Targets)*len(models.ArtifactTypes))
	for _, target := range m.Spec.Targets {
		for _, need := range DeriveArtifactNeeds(m, target) {
			id := models.ArtifactID(target.Name, need.Type)
			req := models.ArtifactRequirement{
				ID:       id,
				Target:   target.Name,
				Type:     need.Type,
				Required: need.Required,
				Tier:     need.Tier,
				RuleID:   need.RuleID,
			}
			if reason, ok := waivers[id]; ok && need.Required {
				req.Waived = true
				req.WaiverReason = reason
			}
			reqs = append(reqs, req)
		}
	}
	return reqs
}

// RequiredTypes returns the distinct required artifact types in canonical
// order.
func RequiredTypes(reqs []models.ArtifactRequirement) []models.ArtifactType {
	seen := make(map[models.ArtifactType]bool)
	for _, r := range reqs {
		if r.Required {
			seen[r.Type] = true
		}
	}
	var out []models.ArtifactType
	for _, t := range models.ArtifactTypes {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}
