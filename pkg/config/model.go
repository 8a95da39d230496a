package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/crfleet/pkg/engine"
)

// LoadModel reads a fleet model from a YAML or JSON file.
func LoadModel(path string) (*engine.ResourceModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	model, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}

// ParseModel decodes a fleet model. JSON documents are accepted as YAML.
// Unknown fields are rejected.
func ParseModel(data []byte) (*engine.ResourceModel, error) {
	var model engine.ResourceModel

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	if err := validator.New().Struct(&model); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &model, nil
}
