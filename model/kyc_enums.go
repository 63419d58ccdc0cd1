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

// IDType is the kind of identity document submitted.
type IDType string

const (
	IDTypePassport       IDType = "passport"
	IDTypeDriversLicense IDType = "drivers_license"
	IDTypeNationalID     IDType = "national_id"
)

var IDTypes = []IDType{IDTypePassport, IDTypeDriversLicense, IDTypeNationalID}

func (t IDType) IsValid() bool {
	switch t {
	case IDTypePassport, IDTypeDriversLicense, IDTypeNationalID:
		return true
	}
	return false
}

// RequiresBackImage reports whether the document has a second side that must be captured.
func (t IDType) RequiresBackImage() bool {
	return t == IDTypeDriversLicense || t == IDTypeNationalID
}

type EmploymentStatus string

const (
	EmploymentEmployed      EmploymentStatus = "employed"
	EmploymentSelfEmployed  EmploymentStatus = "self_employed"
	EmploymentBusinessOwner EmploymentStatus = "business_owner"
	EmploymentRetired       EmploymentStatus = "retired"
	EmploymentOther         EmploymentStatus = "other"
)

var EmploymentStatuses = []EmploymentStatus{
	EmploymentEmployed, EmploymentSelfEmployed, EmploymentBusinessOwner, EmploymentRetired, EmploymentOther,
}

func (e EmploymentStatus) IsValid() bool {
	switch e {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentBusinessOwner, EmploymentRetired, EmploymentOther:
		return true
	}
	return false
}

// KYCStatus is the review state of a KYC record.
type KYCStatus string

const (
	KYCStatusPending     KYCStatus = "pending"
	KYCStatusUnderReview KYCStatus = "under_review"
	KYCStatusApproved    KYCStatus = "approved"
	KYCStatusRejected    KYCStatus = "rejected"
	KYCStatusExpired     KYCStatus = "expired"
)

var KYCStatuses = []KYCStatus{
	KYCStatusPending, KYCStatusUnderReview, KYCStatusApproved, KYCStatusRejected, KYCStatusExpired,
}

func (s KYCStatus) IsValid() bool {
	switch s {
	case KYCStatusPending, KYCStatusUnderReview, KYCStatusApproved, KYCStatusRejected, KYCStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo encodes the review lifecycle:
// pending -> under_review -> approved|rejected, approved -> expired.
func (s KYCStatus) CanTransitionTo(next KYCStatus) bool {
	switch s {
	case KYCStatusPending:
		return next == KYCStatusUnderReview
	case KYCStatusUnderReview:
		return next == KYCStatusApproved || next == KYCStatusRejected
	case KYCStatusApproved:
		return next == KYCStatusExpired
	}
	return false
}

// VerificationLevel gates the maximum transaction size of a verified identity.
type VerificationLevel string

const (
	VerificationLevelBasic        VerificationLevel = "basic"
	VerificationLevelIntermediate VerificationLevel = "intermediate"
	VerificationLevelAdvanced     VerificationLevel = "advanced"
)

var VerificationLevels = []VerificationLevel{
	VerificationLevelBasic, VerificationLevelIntermediate, VerificationLevelAdvanced,
}

func (l VerificationLevel) IsValid() bool {
	_, _, err := TierCeiling(l)
	return err == nil
}

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

var RiskLevels = []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh}

func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return true
	}
	return false
}
