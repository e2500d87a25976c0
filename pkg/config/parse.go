package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes over DefaultConfig and validates it.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ParseRunSpecYAML parses a RunSpec from YAML bytes.
// Unknown keys are rejected so that typos in factor or search names surface early.
func ParseRunSpecYAML(data []byte) (*RunSpec, error) {
	var spec RunSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse run spec yaml: %w", err)
	}
	return &spec, nil
}

// ParseRunSpecJSON parses a RunSpec from JSON bytes, rejecting unknown fields.
func ParseRunSpecJSON(data []byte) (*RunSpec, error) {
	var spec RunSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to parse run spec json: %w", err)
	}
	return &spec, nil
}

// ParseModuleSpecYAML parses a ModuleSpec over the calculator defaults
func ParseModuleSpecYAML(data []byte) (*ModuleSpec, error) {
	spec := NewModuleSpec()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse module spec yaml: %w", err)
	}
	if err := spec.Module.Validate(); err != nil {
		return nil, fmt.Errorf("invalid module spec: %w", err)
	}
	return spec, nil
}

// ParseModuleSpecJSON parses a ModuleSpec over the calculator defaults
func ParseModuleSpecJSON(data []byte) (*ModuleSpec, error) {
	spec := NewModuleSpec()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse module spec json: %w", err)
	}
	if err := spec.Module.Validate(); err != nil {
		return nil, fmt.Errorf("invalid module spec: %w", err)
	}
	return spec, nil
}
