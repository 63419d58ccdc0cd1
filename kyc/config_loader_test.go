package kyc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providersYAML = `
providers:
  - name: acme
    enabled: true
    api_key: ${ACME_SCREENING_KEY}
    base_url: https://screening.test
    endpoint: /v1/screen/{kyc_id}
    response_mapping:
      reference_field: id
      aml_field: checks.aml
      sanctions_field: checks.sanctions
      pep_field: checks.pep
      passed_values: [clear]
  - name: disabled_vendor
    enabled: false
    api_key: key
  - name: broken
    enabled: true
    api_key: key
    base_url: https://broken.test
`

func TestLoadProvidersFromConfigBytes(t *testing.T) {
	t.Setenv("ACME_SCREENING_KEY", "from-env")

	e := NewEngine(nil)
	require.NoError(t, e.LoadProvidersFromConfigBytes([]byte(providersYAML)))
	assert.Equal(t, []string{"acme"}, e.Providers())

	p := e.providers["acme"].(*configurableProvider)
	assert.Equal(t, "from-env", p.config.APIKey)
	assert.Equal(t, defaultMaxRetries, p.config.MaxRetries)
}

func TestLoadProvidersFromConfig_MissingSecret(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.LoadProvidersFromConfigBytes([]byte(providersYAML)))
	assert.Empty(t, e.Providers())
}

func TestLoadProvidersFromConfig_File(t *testing.T) {
	t.Setenv("ACME_SCREENING_KEY", "k")
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(providersYAML), 0o600))

	e := NewEngine(nil)
	require.NoError(t, e.LoadProvidersFromConfig(path))
	assert.Equal(t, []string{"acme"}, e.Providers())

	assert.Error(t, e.LoadProvidersFromConfig(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, e.LoadProvidersFromConfigBytes([]byte("providers: [")))
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("NORDLION_TEST_SECRET", "s3cr3t")
	assert.Equal(t, "s3cr3t", expandEnvVar("${NORDLION_TEST_SECRET}"))
	assert.Equal(t, "plain", expandEnvVar("plain"))
	assert.Equal(t, "${NORDLION_UNSET_VAR}", expandEnvVar("${NORDLION_UNSET_VAR}"))
}
