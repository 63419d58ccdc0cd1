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

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownVerificationLevel is returned when a record carries a level outside the tier table.
	ErrUnknownVerificationLevel = errors.New("unknown verification level")
	// ErrNegativeAmount is returned when a transaction amount below zero is checked.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrInvalidTransition is returned when a status change is not allowed by the review lifecycle.
	ErrInvalidTransition = errors.New("invalid kyc status transition")
)

// KYCRecord holds the identity verification data of a single client identity
// along with its review and compliance metadata.
type KYCRecord struct {
	KYCID      string `json:"kyc_id"`
	IdentityID string `json:"identity_id"`

	FullName    string    `json:"full_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Nationality string    `json:"nationality"`

	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`

	IDType         IDType    `json:"id_type"`
	IDNumber       string    `json:"id_number"`
	IDExpiryDate   time.Time `json:"id_expiry_date"`
	IDFrontImage   string    `json:"id_front_image"`
	IDBackImage    string    `json:"id_back_image,omitempty"`
	ProofOfAddress string    `json:"proof_of_address"`
	SelfieImage    string    `json:"selfie_image"`

	SourceOfFunds    string           `json:"source_of_funds,omitempty"`
	EmploymentStatus EmploymentStatus `json:"employment_status,omitempty"`
	AnnualIncome     string           `json:"annual_income,omitempty"`

	Status            KYCStatus         `json:"status"`
	VerificationLevel VerificationLevel `json:"verification_level"`

	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Notes           string     `json:"notes,omitempty"`

	RiskLevel            RiskLevel `json:"risk_level"`
	AMLCheckPassed       bool      `json:"aml_check_passed"`
	SanctionsCheckPassed bool      `json:"sanctions_check_passed"`
	PEPCheckPassed       bool      `json:"pep_check_passed"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`

	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
}

// ApplyDefaults fills the lifecycle fields a fresh submission starts with.
func (k *KYCRecord) ApplyDefaults(now time.Time) {
	if k.Status == "" {
		k.Status = KYCStatusPending
	}
	if k.VerificationLevel == "" {
		k.VerificationLevel = VerificationLevelBasic
	}
	if k.RiskLevel == "" {
		k.RiskLevel = RiskLevelLow
	}
	if k.SubmittedAt.IsZero() {
		k.SubmittedAt = now
	}
}

// ResetReview puts a resubmitted record back at the start of the lifecycle,
// dropping every review and compliance outcome of the previous submission.
func (k *KYCRecord) ResetReview(now time.Time) {
	k.Status = KYCStatusPending
	k.VerificationLevel = VerificationLevelBasic
	k.RiskLevel = RiskLevelLow
	k.AMLCheckPassed = false
	k.SanctionsCheckPassed = false
	k.PEPCheckPassed = false
	k.ReviewedBy = ""
	k.ReviewedAt = nil
	k.RejectionReason = ""
	k.Notes = ""
	k.ExpiresAt = nil
	k.SubmittedAt = now
}

// IsExpired reports whether ExpiresAt has passed. A record without ExpiresAt never expires.
// The stored Status is not consulted.
func (k *KYCRecord) IsExpired() bool {
	return k.IsExpiredAt(time.Now())
}

// IsExpiredAt is IsExpired evaluated against the given instant.
func (k *KYCRecord) IsExpiredAt(now time.Time) bool {
	if k.ExpiresAt == nil {
		return false
	}
	return now.After(*k.ExpiresAt)
}

// IsApproved reports whether the record is approved and not expired.
func (k *KYCRecord) IsApproved() bool {
	return k.IsApprovedAt(time.Now())
}

// IsApprovedAt is IsApproved evaluated against the given instant.
func (k *KYCRecord) IsApprovedAt(now time.Time) bool {
	return k.Status == KYCStatusApproved && !k.IsExpiredAt(now)
}

// CanTransact reports whether the record authorizes a transaction of amount.
func (k *KYCRecord) CanTransact(amount decimal.Decimal) (bool, error) {
	return k.CanTransactAt(amount, time.Now())
}

// CanTransactAt is CanTransact evaluated against the given instant.
//
// An unapproved or expired record authorizes nothing. An approved record
// authorizes any amount up to and including its tier ceiling.
func (k *KYCRecord) CanTransactAt(amount decimal.Decimal, now time.Time) (bool, error) {
	if amount.IsNegative() {
		return false, ErrNegativeAmount
	}
	if !k.IsApprovedAt(now) {
		return false, nil
	}

	ceiling, bounded, err := TierCeiling(k.VerificationLevel)
	if err != nil {
		return false, fmt.Errorf("kyc %s: %w", k.KYCID, err)
	}
	if !bounded {
		return true, nil
	}
	return amount.LessThanOrEqual(ceiling), nil
}

// TierCeiling returns the maximum transaction amount for a verification level.
// bounded is false for tiers without a ceiling.
func TierCeiling(level VerificationLevel) (ceiling decimal.Decimal, bounded bool, err error) {
	switch level {
	case VerificationLevelBasic:
		return decimal.NewFromInt(50_000), true, nil
	case VerificationLevelIntermediate:
		return decimal.NewFromInt(250_000), true, nil
	case VerificationLevelAdvanced:
		return decimal.Zero, false, nil
	default:
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrUnknownVerificationLevel, level)
	}
}

// Tier describes one row of the verification tier table.
type Tier struct {
	Level   VerificationLevel `json:"level"`
	Ceiling *decimal.Decimal  `json:"ceiling"` // nil means unbounded
}

// Tiers returns the tier table in ascending order.
func Tiers() []Tier {
	tiers := make([]Tier, 0, len(VerificationLevels))
	for _, level := range VerificationLevels {
		ceiling, bounded, _ := TierCeiling(level)
		tier := Tier{Level: level}
		if bounded {
			c := ceiling
			tier.Ceiling = &c
		}
		tiers = append(tiers, tier)
	}
	return tiers
}

// CanTransitionTo reports whether the review lifecycle allows moving from the
// record's current status to next.
func (k *KYCRecord) CanTransitionTo(next KYCStatus) bool {
	return k.Status.CanTransitionTo(next)
}
