package kyc

import (
	"os"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Name            string          `yaml:"name"`
	Enabled         bool            `yaml:"enabled"`
	APIKey          string          `yaml:"api_key"`
	APISecret       string          `yaml:"api_secret,omitempty"`
	AuthType        string          `yaml:"auth_type"`
	AuthHeader      string          `yaml:"auth_header"`
	BaseURL         string          `yaml:"base_url"`
	Endpoint        string          `yaml:"endpoint"`
	TimeoutSec      int             `yaml:"timeout_sec,omitempty"`
	MaxRetries      int             `yaml:"max_retries,omitempty"`
	RequestConfig   RequestConfig   `yaml:"request_config,omitempty"`
	ResponseMapping ResponseMapping `yaml:"response_mapping"`
}

type RequestConfig struct {
	ContentType string `yaml:"content_type,omitempty"`
	// FieldMapping renames record fields (json names) in the request body.
	FieldMapping map[string]string `yaml:"field_mapping,omitempty"`
}

// ResponseMapping locates the screening outcome in the provider's JSON by dotted path.
type ResponseMapping struct {
	ReferenceField string `yaml:"reference_field"`
	AMLField       string `yaml:"aml_field"`
	SanctionsField string `yaml:"sanctions_field"`
	PEPField       string `yaml:"pep_field"`
	RiskField      string `yaml:"risk_field,omitempty"`
	// PassedValues are the string values meaning "check passed". JSON booleans are read as-is.
	PassedValues []string `yaml:"passed_values"`
	// RiskValues maps provider risk labels onto low, medium and high.
	RiskValues map[string]string `yaml:"risk_values,omitempty"`
}

type ScreeningConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

func LoadConfig(filepath string) (*ScreeningConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return LoadConfigFromBytes(data)
}

func LoadConfigFromBytes(data []byte) (*ScreeningConfig, error) {
	var config ScreeningConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
