package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ParseSettingYAML decodes a Setting from its YAML form (the shape the
// playground's config editor produces), applies defaults and validates.
func ParseSettingYAML(data []byte) (Setting, error) {
	var s Setting
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Setting{}, &ConfigError{Field: "yaml", Message: err.Error()}
	}
	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return Setting{}, err
	}
	return s, nil
}

// LoadSettingFile reads and parses a YAML Setting file.
func LoadSettingFile(path string) (Setting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Setting{}, &ConfigError{Field: "file", Message: err.Error()}
	}
	return ParseSettingYAML(data)
}

// MarshalSettingYAML renders a Setting back to YAML.
func MarshalSettingYAML(s Setting) ([]byte, error) {
	return yaml.Marshal(s)
}
