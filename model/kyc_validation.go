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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// isValid adapts an enum's IsValid method to an ozzo rule. Empty values are
// left to validation.Required.
func isValid[T ~string](valid func(T) bool, name string) validation.RuleFunc {
	return func(value interface{}) error {
		v, ok := value.(T)
		if !ok {
			return fmt.Errorf("invalid %s type", name)
		}
		if v == "" || valid(v) {
			return nil
		}
		return fmt.Errorf("unknown %s %q", name, string(v))
	}
}

// Validate checks the data integrity of a record before it is persisted.
func (k *KYCRecord) Validate() error {
	return validation.ValidateStruct(k,
		validation.Field(&k.IdentityID, validation.Required),
		validation.Field(&k.FullName, validation.Required),
		validation.Field(&k.DateOfBirth, validation.Required),
		validation.Field(&k.Nationality, validation.Required),
		validation.Field(&k.Address, validation.Required),
		validation.Field(&k.City, validation.Required),
		validation.Field(&k.PostalCode, validation.Required),
		validation.Field(&k.Country, validation.Required),
		validation.Field(&k.IDType, validation.Required, validation.By(isValid(IDType.IsValid, "id type"))),
		validation.Field(&k.IDNumber, validation.Required),
		validation.Field(&k.IDExpiryDate, validation.Required),
		validation.Field(&k.IDFrontImage, validation.Required),
		validation.Field(&k.IDBackImage, validation.When(k.IDType.RequiresBackImage(), validation.Required.Error("is required for this id type"))),
		validation.Field(&k.ProofOfAddress, validation.Required),
		validation.Field(&k.SelfieImage, validation.Required),
		validation.Field(&k.EmploymentStatus, validation.By(isValid(EmploymentStatus.IsValid, "employment status"))),
		validation.Field(&k.Status, validation.Required, validation.By(isValid(KYCStatus.IsValid, "status"))),
		validation.Field(&k.VerificationLevel, validation.Required, validation.By(isValid(VerificationLevel.IsValid, "verification level"))),
		validation.Field(&k.RiskLevel, validation.Required, validation.By(isValid(RiskLevel.IsValid, "risk level"))),
		validation.Field(&k.RejectionReason, validation.When(k.Status == KYCStatusRejected, validation.Required)),
		validation.Field(&k.ReviewedBy, validation.When(k.Status != KYCStatusPending, validation.Required)),
	)
}

// ReviewAction is a reviewer's request to move a record through the lifecycle.
type ReviewAction struct {
	Status            KYCStatus         `json:"status"`
	ReviewedBy        string            `json:"reviewed_by"`
	RejectionReason   string            `json:"rejection_reason,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	VerificationLevel VerificationLevel `json:"verification_level,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
}

// ComplianceUpdate is a compliance reviewer's change to the screening flags.
// Nil fields are left untouched.
type ComplianceUpdate struct {
	AMLCheckPassed       *bool      `json:"aml_check_passed,omitempty"`
	SanctionsCheckPassed *bool      `json:"sanctions_check_passed,omitempty"`
	PEPCheckPassed       *bool      `json:"pep_check_passed,omitempty"`
	RiskLevel            *RiskLevel `json:"risk_level,omitempty"`
	ReviewedBy           string     `json:"reviewed_by"`
	Notes                string     `json:"notes,omitempty"`
}

// Apply copies the non-nil fields of u onto the record. Notes are review
// metadata and are refused while the record is still pending.
func (u ComplianceUpdate) Apply(k *KYCRecord) error {
	if u.RiskLevel != nil && !u.RiskLevel.IsValid() {
		return fmt.Errorf("unknown risk level %q", string(*u.RiskLevel))
	}
	if u.Notes != "" && k.Status == KYCStatusPending {
		return ErrNotesWhilePending
	}

	if u.RiskLevel != nil {
		k.RiskLevel = *u.RiskLevel
	}
	if u.AMLCheckPassed != nil {
		k.AMLCheckPassed = *u.AMLCheckPassed
	}
	if u.SanctionsCheckPassed != nil {
		k.SanctionsCheckPassed = *u.SanctionsCheckPassed
	}
	if u.PEPCheckPassed != nil {
		k.PEPCheckPassed = *u.PEPCheckPassed
	}
	if u.Notes != "" {
		k.Notes = u.Notes
	}
	return nil
}

var (
	// ErrReviewerRequired is returned when a review or compliance action has no reviewer.
	ErrReviewerRequired = errors.New("reviewer identity is required")
	// ErrNotesWhilePending is returned for compliance notes on a record nobody has picked up for review.
	ErrNotesWhilePending = errors.New("notes can only be added once the record is under review")
)
