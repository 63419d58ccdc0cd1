package kyc

import (
	"context"
	"errors"
	"time"

	"github.com/nordlion/nordlion/model"
)

var ErrProviderNotFound = errors.New("screening provider not configured")

// ScreeningResult is what a provider reports about a KYC record. An empty
// RiskLevel leaves the record's risk level unchanged.
type ScreeningResult struct {
	AMLCheckPassed       bool                   `json:"aml_check_passed"`
	SanctionsCheckPassed bool                   `json:"sanctions_check_passed"`
	PEPCheckPassed       bool                   `json:"pep_check_passed"`
	RiskLevel            model.RiskLevel        `json:"risk_level,omitempty"`
	ProviderRef          string                 `json:"provider_ref"`
	RawData              map[string]interface{} `json:"raw_data,omitempty"`
	Timestamp            time.Time              `json:"timestamp"`
}

// ComplianceUpdate converts the result into the update a compliance reviewer would file.
func (r *ScreeningResult) ComplianceUpdate(reviewedBy string) model.ComplianceUpdate {
	update := model.ComplianceUpdate{
		AMLCheckPassed:       &r.AMLCheckPassed,
		SanctionsCheckPassed: &r.SanctionsCheckPassed,
		PEPCheckPassed:       &r.PEPCheckPassed,
		ReviewedBy:           reviewedBy,
	}
	if r.RiskLevel != "" {
		risk := r.RiskLevel
		update.RiskLevel = &risk
	}
	return update
}

type ScreeningProvider interface {
	Name() string
	Screen(ctx context.Context, record *model.KYCRecord) (*ScreeningResult, error)
}
