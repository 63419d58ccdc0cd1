package kyc

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func (e *Engine) LoadProvidersFromConfig(path string) error {
	config, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load screening config: %w", err)
	}

	return e.loadProvidersFromConfigData(config)
}

func (e *Engine) LoadProvidersFromConfigBytes(data []byte) error {
	config, err := LoadConfigFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to parse screening config: %w", err)
	}

	return e.loadProvidersFromConfigData(config)
}

func (e *Engine) loadProvidersFromConfigData(config *ScreeningConfig) error {
	for _, providerConfig := range config.Providers {
		if !providerConfig.Enabled {
			logrus.Infof("Screening provider %s is disabled, skipping", providerConfig.Name)
			continue
		}

		providerConfig.APIKey = expandEnvVar(providerConfig.APIKey)
		providerConfig.APISecret = expandEnvVar(providerConfig.APISecret)

		if err := validateProviderConfig(providerConfig); err != nil {
			logrus.Warnf("Invalid config for provider %s: %v", providerConfig.Name, err)
			continue
		}

		e.RegisterProvider(newConfigurableProvider(providerConfig))
		logrus.Infof("Loaded screening provider from config: %s", providerConfig.Name)
	}

	return nil
}

// expandEnvVar resolves "${NAME}" from the environment, leaving other values untouched.
func expandEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envName := value[2 : len(value)-1]
		if envValue := os.Getenv(envName); envValue != "" {
			return envValue
		}
	}
	return value
}

func validateProviderConfig(config ProviderConfig) error {
	if config.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if config.APIKey == "" || strings.HasPrefix(config.APIKey, "${") {
		return fmt.Errorf("api_key is required")
	}
	if config.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if config.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	m := config.ResponseMapping
	if m.AMLField == "" || m.SanctionsField == "" || m.PEPField == "" {
		return fmt.Errorf("response_mapping needs aml_field, sanctions_field and pep_field")
	}
	if m.ReferenceField == "" {
		return fmt.Errorf("response_mapping.reference_field is required")
	}
	return nil
}
