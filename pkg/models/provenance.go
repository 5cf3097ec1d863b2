package models

// ChainAlgorithm identifies the chained hashing scheme.
const ChainAlgorithm = "sha256-chain"

// Chain link names in their fixed order.
const (
	LinkSource           = "source"
	LinkArtifactManifest = "artifact-manifest"
	LinkDerivedResource  = "derived-resource"
)

// ChainLink is one entry of the checksum chain.
type ChainLink struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// GitInfo is version-control metadata supplied by the caller.
type GitInfo struct {
	Commit    string `json:"commit,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ToolInfo identifies the tool that produced an export.
type ToolInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	EngineVersion string `json:"engine_version"`
}

// ProvenanceRecord is the auditable checksum chain of an export.
type ProvenanceRecord struct {
	Algorithm   string      `json:"algorithm"`
	ExportID    string      `json:"export_id"`
	Chain       []ChainLink `json:"chain"`
	Git         GitInfo     `json:"git"`
	Tool        ToolInfo    `json:"tool"`
	GeneratedAt string      `json:"generated_at,omitempty"`
}

// LinkMismatch describes a chain link whose recomputed digest differs.
type LinkMismatch struct {
	Name       string `json:"name"`
	Recorded   string `json:"recorded"`
	Recomputed string `json:"recomputed"`
}
