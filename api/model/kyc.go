/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/nordlion/nordlion/model"
)

// SubmitKYC is the body of POST /kyc. Dates are YYYY-MM-DD.
type SubmitKYC struct {
	IdentityID string `json:"identity_id"`

	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Nationality string `json:"nationality"`

	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`

	IDType         string `json:"id_type"`
	IDNumber       string `json:"id_number"`
	IDExpiryDate   string `json:"id_expiry_date"`
	IDFrontImage   string `json:"id_front_image"`
	IDBackImage    string `json:"id_back_image"`
	ProofOfAddress string `json:"proof_of_address"`
	SelfieImage    string `json:"selfie_image"`

	SourceOfFunds    string `json:"source_of_funds"`
	EmploymentStatus string `json:"employment_status"`
	AnnualIncome     string `json:"annual_income"`

	MetaData map[string]interface{} `json:"meta_data"`
}

func inEnum[T ~string](values []T) validation.Rule {
	allowed := make([]interface{}, len(values))
	for i, v := range values {
		allowed[i] = string(v)
	}
	return validation.In(allowed...).Error(fmt.Sprintf("must be one of %v", values))
}

func (s *SubmitKYC) ValidateSubmitKYC() error {
	dateRule := validation.By(validateDateFormat(dateLayout, "please format the date as 'YYYY-MM-DD' (e.g., 1990-04-22)"))
	return validation.ValidateStruct(s,
		validation.Field(&s.IdentityID, validation.Required),
		validation.Field(&s.FullName, validation.Required),
		validation.Field(&s.DateOfBirth, validation.Required, dateRule),
		validation.Field(&s.Nationality, validation.Required),
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.City, validation.Required),
		validation.Field(&s.PostalCode, validation.Required),
		validation.Field(&s.Country, validation.Required),
		validation.Field(&s.IDType, validation.Required, inEnum(model.IDTypes)),
		validation.Field(&s.IDNumber, validation.Required),
		validation.Field(&s.IDExpiryDate, validation.Required, dateRule),
		validation.Field(&s.IDFrontImage, validation.Required),
		validation.Field(&s.ProofOfAddress, validation.Required),
		validation.Field(&s.SelfieImage, validation.Required),
		validation.Field(&s.EmploymentStatus, inEnum(model.EmploymentStatuses)),
	)
}

// ToKYCRecord converts the request into a record; client IP and user agent
// are filled in by the handler.
func (s *SubmitKYC) ToKYCRecord() model.KYCRecord {
	return model.KYCRecord{
		IdentityID:       s.IdentityID,
		FullName:         s.FullName,
		DateOfBirth:      parseDate(s.DateOfBirth),
		Nationality:      s.Nationality,
		Address:          s.Address,
		City:             s.City,
		PostalCode:       s.PostalCode,
		Country:          s.Country,
		IDType:           model.IDType(s.IDType),
		IDNumber:         s.IDNumber,
		IDExpiryDate:     parseDate(s.IDExpiryDate),
		IDFrontImage:     s.IDFrontImage,
		IDBackImage:      s.IDBackImage,
		ProofOfAddress:   s.ProofOfAddress,
		SelfieImage:      s.SelfieImage,
		SourceOfFunds:    s.SourceOfFunds,
		EmploymentStatus: model.EmploymentStatus(s.EmploymentStatus),
		AnnualIncome:     s.AnnualIncome,
		MetaData:         s.MetaData,
	}
}

type ReviewKYC struct {
	Status            string `json:"status"`
	ReviewedBy        string `json:"reviewed_by"`
	RejectionReason   string `json:"rejection_reason"`
	Notes             string `json:"notes"`
	VerificationLevel string `json:"verification_level"`
	ExpiresAt         string `json:"expires_at"`
}

func (r *ReviewKYC) ValidateReviewKYC() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, inEnum(model.KYCStatuses)),
		validation.Field(&r.ReviewedBy, validation.Required),
		validation.Field(&r.RejectionReason, validation.When(r.Status == string(model.KYCStatusRejected), validation.Required)),
		validation.Field(&r.VerificationLevel, inEnum(model.VerificationLevels)),
		validation.Field(&r.ExpiresAt, validation.By(validateDateFormat(timestampLayout, "please format expires_at as 'YYYY-MM-DDTHH:MM:SS+00:00' (e.g., 2026-04-22T15:28:03+00:00)"))),
	)
}

func (r *ReviewKYC) ToReviewAction() model.ReviewAction {
	return model.ReviewAction{
		Status:            model.KYCStatus(r.Status),
		ReviewedBy:        r.ReviewedBy,
		RejectionReason:   r.RejectionReason,
		Notes:             r.Notes,
		VerificationLevel: model.VerificationLevel(r.VerificationLevel),
		ExpiresAt:         parseOptional(timestampLayout, r.ExpiresAt),
	}
}

type UpdateCompliance struct {
	AMLCheckPassed       *bool  `json:"aml_check_passed"`
	SanctionsCheckPassed *bool  `json:"sanctions_check_passed"`
	PEPCheckPassed       *bool  `json:"pep_check_passed"`
	RiskLevel            string `json:"risk_level"`
	ReviewedBy           string `json:"reviewed_by"`
	Notes                string `json:"notes"`
}

func (u *UpdateCompliance) ValidateUpdateCompliance() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.ReviewedBy, validation.Required),
		validation.Field(&u.RiskLevel, inEnum(model.RiskLevels)),
		validation.Field(&u.Notes, validation.By(func(interface{}) error {
			if u.AMLCheckPassed == nil && u.SanctionsCheckPassed == nil && u.PEPCheckPassed == nil && u.RiskLevel == "" && u.Notes == "" {
				return errors.New("at least one compliance field must be provided")
			}
			return nil
		})),
	)
}

func (u *UpdateCompliance) ToComplianceUpdate() model.ComplianceUpdate {
	update := model.ComplianceUpdate{
		AMLCheckPassed:       u.AMLCheckPassed,
		SanctionsCheckPassed: u.SanctionsCheckPassed,
		PEPCheckPassed:       u.PEPCheckPassed,
		ReviewedBy:           u.ReviewedBy,
		Notes:                u.Notes,
	}
	if u.RiskLevel != "" {
		risk := model.RiskLevel(u.RiskLevel)
		update.RiskLevel = &risk
	}
	return update
}

type ScreenKYC struct {
	Provider   string `json:"provider"`
	ReviewedBy string `json:"reviewed_by"`
}

func (s *ScreenKYC) ValidateScreenKYC() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Provider, validation.Required),
		validation.Field(&s.ReviewedBy, validation.Required),
	)
}

// CanTransact is the body of POST /kyc/can-transact. Amount is in major
// units of the configured currency and accepts a JSON string or number.
type CanTransact struct {
	IdentityID string           `json:"identity_id"`
	Amount     *decimal.Decimal `json:"amount"`
}

func (c *CanTransact) ValidateCanTransact() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IdentityID, validation.Required),
		validation.Field(&c.Amount, validation.NotNil, validation.By(func(value interface{}) error {
			var amount decimal.Decimal
			switch v := value.(type) {
			case *decimal.Decimal:
				if v == nil {
					return nil
				}
				amount = *v
			case decimal.Decimal:
				amount = v
			default:
				return nil
			}
			if amount.IsNegative() {
				return model.ErrNegativeAmount
			}
			return nil
		})),
	)
}

type RequestSweep struct {
	RequestedBy string `json:"requested_by"`
}

func (r *RequestSweep) ValidateRequestSweep() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RequestedBy, validation.Required),
	)
}
