package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/valter-silva-au/contextcore/pkg/models"
	"gopkg.in/yaml.v3"
)

// schemaGeneration decodes and checks one immutable manifest generation.
type schemaGeneration struct {
	decode func(raw []byte) (models.VersionedManifest, error)
}

// schemaGenerations dispatches a document to its generation by apiVersion.
var schemaGenerations = map[models.APIVersion]schemaGeneration{
	models.APIVersionV1Alpha1: {decode: decodeV1Alpha1},
	models.APIVersionV1Alpha2: {decode: decodeV1Alpha2},
}

// SupportedAPIVersions lists the accepted apiVersion values, oldest first.
func SupportedAPIVersions() []models.APIVersion {
	versions := make([]models.APIVersion, 0, len(schemaGenerations))
	for v := range schemaGenerations {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

func decodeV1Alpha1(raw []byte) (models.VersionedManifest, error) {
	var doc models.ManifestV1Alpha1
	decodeErrs, ok := decodeStrict(raw, &doc)
	if !ok {
		return nil, decodeErrs
	}
	if err := mergeSchemaErrors(decodeErrs, checkV1Alpha1(&doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

func decodeV1Alpha2(raw []byte) (models.VersionedManifest, error) {
	var doc models.Manifest
	decodeErrs, ok := decodeStrict(raw, &doc)
	if !ok {
		return nil, decodeErrs
	}
	if err := mergeSchemaErrors(decodeErrs, checkV1Alpha2(&doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

var (
	decodeLinePattern   = regexp.MustCompile(`^line (\d+): (.*)$`)
	unknownFieldPattern = regexp.MustCompile(`^field (\S+) not found in type`)
)

// decodeStrict decodes exactly one YAML document into out, rejecting unknown
// fields. Unknown fields and type mismatches leave out partially decoded and
// are returned with ok set, so the schema check can still run; syntax errors
// and empty input return ok unset.
func decodeStrict(raw []byte, out any) (errs SchemaErrors, ok bool) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return SchemaErrors{{Message: "document is empty"}}, false
		}
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			return SchemaErrors{{Message: "invalid YAML: " + err.Error()}}, false
		}
		errs = decodeErrorsWithPaths(raw, typeErr.Errors)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		line := extra.Line
		if err != nil {
			line = 0
		}
		msg := "must contain exactly one YAML document"
		if line > 0 {
			msg = fmt.Sprintf("%s, another starts at line %d", msg, line)
		}
		errs = append(errs, SchemaError{Message: msg})
	}
	return errs, true
}

// decodeErrorsWithPaths turns yaml.v3 "line N: ..." messages into schema
// errors qualified by the field path found at that line.
func decodeErrorsWithPaths(raw []byte, msgs []string) SchemaErrors {
	var root yaml.Node
	paths := map[int]string{}
	if err := yaml.Unmarshal(raw, &root); err == nil {
		indexLines(&root, "", paths)
	}

	errs := make(SchemaErrors, 0, len(msgs))
	for _, msg := range msgs {
		se := SchemaError{Message: msg}
		if m := decodeLinePattern.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			se.Path = paths[line]
			se.Message = m[2]
			if f := unknownFieldPattern.FindStringSubmatch(m[2]); f != nil {
				se.Message = "unknown field"
				if se.Path == "" {
					se.Path = f[1]
				}
			} else if se.Path == "" {
				se.Message = msg
			}
		}
		errs = append(errs, se)
	}
	return errs
}

// indexLines records, per source line, the outermost field path that starts
// on it.
func indexLines(n *yaml.Node, path string, paths map[int]string) {
	record := func(line int, p string) {
		if _, ok := paths[line]; !ok {
			paths[line] = p
		}
	}
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			indexLines(c, path, paths)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			p := key.Value
			if path != "" {
				p = path + "." + key.Value
			}
			record(key.Line, p)
			indexLines(val, p, paths)
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			p := fmt.Sprintf("%s[%d]", path, i)
			if c.Kind != yaml.MappingNode {
				record(c.Line, p)
			}
			indexLines(c, p, paths)
		}
	}
}

// mergeSchemaErrors joins decode problems with the schema check result.
// A schema error at a path the decoder already reported is dropped, since
// it only restates the zero value the decoder left behind.
func mergeSchemaErrors(decodeErrs SchemaErrors, checkErr error) error {
	var checkErrs SchemaErrors
	if checkErr != nil && !errors.As(checkErr, &checkErrs) {
		return checkErr
	}
	if len(decodeErrs) == 0 && len(checkErrs) == 0 {
		return nil
	}

	reported := make(map[string]bool, len(decodeErrs))
	for _, e := range decodeErrs {
		if e.Path != "" {
			reported[e.Path] = true
		}
	}
	all := slices.Clone(decodeErrs)
	for _, e := range checkErrs {
		if !reported[e.Path] {
			all = append(all, e)
		}
	}
	return all
}

// ParseDocument decodes raw YAML into the schema generation named by its
// apiVersion, without migrating it.
func ParseDocument(raw []byte) (models.VersionedManifest, error) {
	var peek struct {
		APIVersion models.APIVersion `yaml:"apiVersion"`
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, SchemaErrors{{Message: "document is empty"}}
	}
	if err := yaml.Unmarshal(raw, &peek); err != nil {
		return nil, SchemaErrors{{Message: "invalid YAML: " + err.Error()}}
	}
	if peek.APIVersion == "" {
		return nil, SchemaErrors{{Path: "apiVersion", Message: "is required"}}
	}

	gen, ok := schemaGenerations[peek.APIVersion]
	if !ok {
		supported := make([]string, 0, len(schemaGenerations))
		for _, v := range SupportedAPIVersions() {
			supported = append(supported, string(v))
		}
		return nil, SchemaErrors{{
			Path:    "apiVersion",
			Message: fmt.Sprintf("%q is not supported, must be one of: %s", peek.APIVersion, strings.Join(supported, ", ")),
		}}
	}
	return gen.decode(raw)
}

// ParseManifest decodes and schema-checks raw YAML and lifts it to the
// current generation. Schema failures are returned as SchemaErrors.
func ParseManifest(raw []byte) (*models.Manifest, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return liftToCurrent(doc)
}

// MarshalManifest renders a manifest of any generation as YAML.
func MarshalManifest(doc models.VersionedManifest) ([]byte, error) {
	data, err := encodeYAML(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}
