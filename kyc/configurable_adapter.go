package kyc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nordlion/nordlion/model"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

type configurableProvider struct {
	config          ProviderConfig
	httpClient      *http.Client
	initialInterval time.Duration
}

func newConfigurableProvider(config ProviderConfig) ScreeningProvider {
	timeout := defaultTimeout
	if config.TimeoutSec > 0 {
		timeout = time.Duration(config.TimeoutSec) * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
	}
	return &configurableProvider{
		config:          config,
		httpClient:      &http.Client{Timeout: timeout},
		initialInterval: 500 * time.Millisecond,
	}
}

func (p *configurableProvider) Name() string {
	return p.config.Name
}

// Screen posts the record to the provider. Transport errors and 5xx answers are
// retried with exponential backoff; 4xx answers fail at once.
func (p *configurableProvider) Screen(ctx context.Context, record *model.KYCRecord) (*ScreeningResult, error) {
	bodyBytes, err := json.Marshal(p.buildRequestBody(record))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	url := p.config.BaseURL + p.replacePlaceholders(p.config.Endpoint, record)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.config.MaxRetries)), ctx)

	var result *ScreeningResult
	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		p.addAuth(req)
		contentType := p.config.RequestConfig.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		result, err = p.parseResponse(resp)
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *configurableProvider) addAuth(req *http.Request) {
	switch strings.ToLower(p.config.AuthType) {
	case "basic":
		auth := base64.StdEncoding.EncodeToString([]byte(p.config.APIKey + ":" + p.config.APISecret))
		req.Header.Set("Authorization", "Basic "+auth)
	case "header":
		header := p.config.AuthHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, p.config.APIKey)
	default:
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

// buildRequestBody sends only what a sanctions/PEP screen needs; document images stay home.
func (p *configurableProvider) buildRequestBody(record *model.KYCRecord) map[string]interface{} {
	fields := map[string]interface{}{
		"reference":     record.KYCID,
		"full_name":     record.FullName,
		"date_of_birth": record.DateOfBirth.Format("2006-01-02"),
		"nationality":   record.Nationality,
		"country":       record.Country,
		"id_type":       string(record.IDType),
		"id_number":     record.IDNumber,
	}

	mapping := p.config.RequestConfig.FieldMapping
	if len(mapping) == 0 {
		return fields
	}

	body := make(map[string]interface{}, len(mapping))
	for from, to := range mapping {
		if v, ok := fields[from]; ok {
			body[to] = v
		}
	}
	return body
}

func (p *configurableProvider) replacePlaceholders(endpoint string, record *model.KYCRecord) string {
	result := strings.ReplaceAll(endpoint, "{kyc_id}", record.KYCID)
	return strings.ReplaceAll(result, "{identity_id}", record.IdentityID)
}

func (p *configurableProvider) parseResponse(resp *http.Response) (*ScreeningResult, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("provider returned error status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(fmt.Errorf("provider returned error status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var data map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &data); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse response JSON: %w", err))
	}

	mapping := p.config.ResponseMapping
	refStr, _ := getNestedValue(data, mapping.ReferenceField).(string)

	return &ScreeningResult{
		AMLCheckPassed:       p.passed(getNestedValue(data, mapping.AMLField)),
		SanctionsCheckPassed: p.passed(getNestedValue(data, mapping.SanctionsField)),
		PEPCheckPassed:       p.passed(getNestedValue(data, mapping.PEPField)),
		RiskLevel:            p.mapRisk(getNestedValue(data, mapping.RiskField)),
		ProviderRef:          refStr,
		RawData:              data,
		Timestamp:            time.Now(),
	}, nil
}

func getNestedValue(data map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}
	current := interface{}(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func (p *configurableProvider) passed(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		for _, ok := range p.config.ResponseMapping.PassedValues {
			if strings.EqualFold(ok, v) {
				return true
			}
		}
	}
	return false
}

// mapRisk returns "" when the provider gave no usable risk label.
func (p *configurableProvider) mapRisk(value interface{}) model.RiskLevel {
	label, ok := value.(string)
	if !ok || label == "" {
		return ""
	}
	for from, to := range p.config.ResponseMapping.RiskValues {
		if strings.EqualFold(from, label) {
			label = to
			break
		}
	}
	risk := model.RiskLevel(strings.ToLower(label))
	if !risk.IsValid() {
		return ""
	}
	return risk
}
