package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/contextcore/pkg/models"
)

// ToolName is recorded in provenance and onboarding metadata.
const ToolName = "contextcore"

// exportNamespace scopes name-based export ids.
var exportNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://contextcore.io/exports"))

// gitCommitPattern matches abbreviated or full SHA-1 and SHA-256 commit ids.
var gitCommitPattern = regexp.MustCompile(`^[0-9a-f]{7,64}$`)

// ChainInput holds the exact bytes covered by the checksum chain.
type ChainInput struct {
	Source           []byte
	ArtifactManifest []byte
	DerivedResource  []byte
}

// ChainDigests computes the chained digests:
// h1 = sha256(source), h2 = sha256(hex(h1) || artifactManifest),
// h3 = sha256(hex(h2) || derivedResource). Each link commits to every
// link before it.
func ChainDigests(in ChainInput) [3]string {
	var out [3]string
	prev := ""
	for i, data := range [][]byte{in.Source, in.ArtifactManifest, in.DerivedResource} {
		h := sha256.New()
		h.Write([]byte(prev))
		h.Write(data)
		prev = hex.EncodeToString(h.Sum(nil))
		out[i] = prev
	}
	return out
}

// ExportID derives a stable export id from the chain head.
func ExportID(head string) string {
	return uuid.NewSHA1(exportNamespace, []byte(head)).String()
}

// EmitProvenance builds the provenance record for an export. Git metadata
// and the generation timestamp are supplied by the caller; nothing here reads
// the clock or the environment.
func EmitProvenance(in ChainInput, git models.GitInfo, tool models.ToolInfo, generatedAt string) models.ProvenanceRecord {
	digests := ChainDigests(in)
	return models.ProvenanceRecord{
		Algorithm: models.ChainAlgorithm,
		ExportID:  ExportID(digests[2]),
		Chain: []models.ChainLink{
			{Name: models.LinkSource, Path: models.FileSourceManifest, Digest: digests[0]},
			{Name: models.LinkArtifactManifest, Path: models.FileArtifactManifest, Digest: digests[1]},
			{Name: models.LinkDerivedResource, Path: models.FileProjectContext, Digest: digests[2]},
		},
		Git:         git,
		Tool:        tool,
		GeneratedAt: generatedAt,
	}
}

// VerifyChain recomputes the chain from on-disk bytes and returns every link
// whose recorded digest differs. Links missing from the record are reported
// with an empty recorded digest.
func VerifyChain(rec *models.ProvenanceRecord, in ChainInput) []models.LinkMismatch {
	digests := ChainDigests(in)
	names := []string{models.LinkSource, models.LinkArtifactManifest, models.LinkDerivedResource}

	recorded := make(map[string]string, len(rec.Chain))
	for _, link := range rec.Chain {
		recorded[link.Name] = link.Digest
	}

	var mismatches []models.LinkMismatch
	for i, name := range names {
		if recorded[name] != digests[i] {
			mismatches = append(mismatches, models.LinkMismatch{
				Name:       name,
				Recorded:   recorded[name],
				Recomputed: digests[i],
			})
		}
	}
	return mismatches
}

// ProvenanceIssues lists consistency problems in a provenance record.
func ProvenanceIssues(rec *models.ProvenanceRecord) []string {
	var issues []string

	if rec.Algorithm != models.ChainAlgorithm {
		issues = append(issues, fmt.Sprintf("algorithm %q is not %q", rec.Algorithm, models.ChainAlgorithm))
	}
	if rec.Tool.Version == "" {
		issues = append(issues, "tool version is missing")
	}
	if rec.Tool.EngineVersion == "" {
		issues = append(issues, "engine version is missing")
	}

	if rec.Git.Commit != "" && !gitCommitPattern.MatchString(strings.ToLower(rec.Git.Commit)) {
		issues = append(issues, fmt.Sprintf("git commit %q is not a hex commit id", rec.Git.Commit))
	}
	if rec.Git.Commit != "" && rec.Git.Timestamp == "" {
		issues = append(issues, "git commit is recorded without a timestamp")
	}
	issues = append(issues, timestampIssues("git timestamp", rec.Git.Timestamp)...)
	issues = append(issues, timestampIssues("generatedAt", rec.GeneratedAt)...)

	expected := map[string]string{
		models.LinkSource:           models.FileSourceManifest,
		models.LinkArtifactManifest: models.FileArtifactManifest,
		models.LinkDerivedResource:  models.FileProjectContext,
	}
	if len(rec.Chain) != len(expected) {
		issues = append(issues, fmt.Sprintf("chain has %d links, want %d", len(rec.Chain), len(expected)))
	}
	for _, link := range rec.Chain {
		want, ok := expected[link.Name]
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("unknown chain link %q", link.Name))
		case link.Path != want:
			issues = append(issues, fmt.Sprintf("chain link %q points at %q, want %q", link.Name, link.Path, want))
		}
	}

	if len(rec.Chain) > 0 {
		head := rec.Chain[len(rec.Chain)-1].Digest
		if rec.ExportID != ExportID(head) {
			issues = append(issues, "export id does not match the chain head")
		}
	}
	return issues
}

// timestampIssues checks that a non-empty timestamp is RFC 3339 in UTC.
func timestampIssues(label, ts string) []string {
	if ts == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return []string{fmt.Sprintf("%s %q is not RFC 3339", label, ts)}
	}
	if _, offset := t.Zone(); offset != 0 {
		return []string{fmt.Sprintf("%s %q is not UTC", label, ts)}
	}
	return nil
}

// FormatTimestamp renders t as an RFC 3339 UTC timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// SourceDateEpochVar names the reproducible-builds timestamp variable.
const SourceDateEpochVar = "SOURCE_DATE_EPOCH"

// GeneratedAtFromEpoch converts a SOURCE_DATE_EPOCH value (seconds since the
// Unix epoch) into a generation timestamp. An empty value yields "".
func GeneratedAtFromEpoch(epoch string) (string, error) {
	epoch = strings.TrimSpace(epoch)
	if epoch == "" {
		return "", nil
	}
	secs, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil || secs < 0 {
		return "", fmt.Errorf("%s %q is not a non-negative integer", SourceDateEpochVar, epoch)
	}
	return FormatTimestamp(time.Unix(secs, 0)), nil
}
