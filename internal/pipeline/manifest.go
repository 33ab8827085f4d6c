package pipeline

import (
	"os"

	"gopkg.in/yaml.v3"
)

// WriteManifest writes the batch report as YAML.
func WriteManifest(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a report written by WriteManifest.
func ReadManifest(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
