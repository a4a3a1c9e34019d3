package backbeat

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseProject reads a project from its yaml serialization.
func ParseProject(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("could not parse project: %w", err)
	}
	return &p, nil
}

// Marshal serializes the project as yaml.
func (p *Project) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("could not marshal project: %w", err)
	}
	return data, nil
}
