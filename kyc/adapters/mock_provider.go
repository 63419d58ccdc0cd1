package adapters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nordlion/nordlion/kyc"
	"github.com/nordlion/nordlion/model"
)

// MockProvider screens records locally. Names containing "sanction" fail the
// sanctions check, which makes it usable for demos without a vendor account.
type MockProvider struct {
	ShouldFail bool
	FlagPEP    bool
	Delay      time.Duration
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string {
	return "mock_provider"
}

func (m *MockProvider) Screen(ctx context.Context, record *model.KYCRecord) (*kyc.ScreeningResult, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.ShouldFail {
		return nil, errors.New("mock screening failure triggered")
	}

	sanctioned := strings.Contains(strings.ToLower(record.FullName), "sanction")
	result := &kyc.ScreeningResult{
		AMLCheckPassed:       !sanctioned,
		SanctionsCheckPassed: !sanctioned,
		PEPCheckPassed:       !m.FlagPEP,
		RiskLevel:            model.RiskLevelLow,
		ProviderRef:          "mock_" + uuid.New().String(),
		Timestamp:            time.Now(),
	}
	switch {
	case sanctioned:
		result.RiskLevel = model.RiskLevelHigh
	case m.FlagPEP:
		result.RiskLevel = model.RiskLevelMedium
	}
	return result, nil
}
