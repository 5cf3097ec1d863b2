package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExistingMapLoader reads an explicit artifact id -> path map.
type ExistingMapLoader interface {
	Load(path string) (map[string]string, error)
}

type yamlExistingMap struct{}

// NewExistingMapLoader creates a loader for YAML id -> path maps, either
// flat or nested under an "artifacts" key.
func NewExistingMapLoader() ExistingMapLoader {
	return &yamlExistingMap{}
}

func (l *yamlExistingMap) Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading existing artifact map %s: %w", path, err)
	}

	var nested struct {
		Artifacts map[string]string `yaml:"artifacts"`
	}
	if err := yaml.Unmarshal(data, &nested); err == nil && nested.Artifacts != nil {
		return nested.Artifacts, nil
	}

	flat := make(map[string]string)
	if err := yaml.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("parsing existing artifact map %s: %w", path, err)
	}
	return flat, nil
}
