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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nordlion/nordlion/internal/apierror"
	"github.com/nordlion/nordlion/model"
)

const kycColumns = `kyc_id, identity_id, full_name, date_of_birth, nationality,
	address, city, postal_code, country,
	id_type, id_number, id_expiry_date, id_front_image, COALESCE(id_back_image, ''), proof_of_address, selfie_image,
	COALESCE(source_of_funds, ''), COALESCE(employment_status, ''), COALESCE(annual_income, ''),
	status, verification_level,
	COALESCE(reviewed_by, ''), reviewed_at, COALESCE(rejection_reason, ''), COALESCE(notes, ''),
	risk_level, aml_check_passed, sanctions_check_passed, pep_check_passed,
	expires_at, submitted_at, COALESCE(ip_address, ''), COALESCE(user_agent, ''),
	created_at, updated_at, meta_data`

func scanKYC(row rowScanner) (model.KYCRecord, error) {
	var k model.KYCRecord
	var metaDataJSON []byte
	err := row.Scan(
		&k.KYCID, &k.IdentityID, &k.FullName, &k.DateOfBirth, &k.Nationality,
		&k.Address, &k.City, &k.PostalCode, &k.Country,
		&k.IDType, &k.IDNumber, &k.IDExpiryDate, &k.IDFrontImage, &k.IDBackImage, &k.ProofOfAddress, &k.SelfieImage,
		&k.SourceOfFunds, &k.EmploymentStatus, &k.AnnualIncome,
		&k.Status, &k.VerificationLevel,
		&k.ReviewedBy, &k.ReviewedAt, &k.RejectionReason, &k.Notes,
		&k.RiskLevel, &k.AMLCheckPassed, &k.SanctionsCheckPassed, &k.PEPCheckPassed,
		&k.ExpiresAt, &k.SubmittedAt, &k.IPAddress, &k.UserAgent,
		&k.CreatedAt, &k.UpdatedAt, &metaDataJSON,
	)
	if err != nil {
		return k, err
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &k.MetaData); err != nil {
			return k, err
		}
	}
	return k, nil
}

// normaliseTimes moves every instant of the record to UTC before it is written,
// so the stored value never depends on the offset the client sent.
func normaliseTimes(record *model.KYCRecord) {
	record.SubmittedAt = record.SubmittedAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	record.ReviewedAt = utcPtr(record.ReviewedAt)
	record.ExpiresAt = utcPtr(record.ExpiresAt)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// requireCurrent reports CONFLICT when a guarded update matched no row, which
// means the record moved on after it was read.
func requireCurrent(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "KYC record", id)
	}
	if n == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("KYC record %s was changed by another request", id), nil)
	}
	return nil
}

// CreateKYC inserts a new KYC submission. A duplicate id_number or a second
// record for the same identity surfaces as a CONFLICT.
func (d Datasource) CreateKYC(ctx context.Context, record *model.KYCRecord) error {
	metaDataJSON, err := json.Marshal(record.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "failed to marshal metadata", err)
	}

	now := time.Now()
	record.ApplyDefaults(now)
	record.KYCID = model.GenerateID("kyc")
	record.CreatedAt = now
	record.UpdatedAt = now
	normaliseTimes(record)

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO nordlion.kyc_records (
			kyc_id, identity_id, full_name, date_of_birth, nationality,
			address, city, postal_code, country,
			id_type, id_number, id_expiry_date, id_front_image, id_back_image, proof_of_address, selfie_image,
			source_of_funds, employment_status, annual_income,
			status, verification_level, risk_level,
			aml_check_passed, sanctions_check_passed, pep_check_passed,
			expires_at, submitted_at, ip_address, user_agent,
			created_at, updated_at, meta_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)
	`,
		record.KYCID, record.IdentityID, record.FullName, record.DateOfBirth, record.Nationality,
		record.Address, record.City, record.PostalCode, record.Country,
		record.IDType, record.IDNumber, record.IDExpiryDate, record.IDFrontImage, record.IDBackImage, record.ProofOfAddress, record.SelfieImage,
		record.SourceOfFunds, record.EmploymentStatus, record.AnnualIncome,
		record.Status, record.VerificationLevel, record.RiskLevel,
		record.AMLCheckPassed, record.SanctionsCheckPassed, record.PEPCheckPassed,
		record.ExpiresAt, record.SubmittedAt, record.IPAddress, record.UserAgent,
		record.CreatedAt, record.UpdatedAt, metaDataJSON,
	)
	if err != nil {
		return mapError(err, "KYC record", record.KYCID)
	}
	return nil
}

// ResubmitKYC overwrites the submitted identity, document and financial data of
// an existing record and puts it back to pending with cleared review state.
func (d Datasource) ResubmitKYC(ctx context.Context, record *model.KYCRecord) error {
	metaDataJSON, err := json.Marshal(record.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "failed to marshal metadata", err)
	}
	record.UpdatedAt = time.Now()
	normaliseTimes(record)

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nordlion.kyc_records SET
			full_name = $2, date_of_birth = $3, nationality = $4,
			address = $5, city = $6, postal_code = $7, country = $8,
			id_type = $9, id_number = $10, id_expiry_date = $11, id_front_image = $12, id_back_image = $13, proof_of_address = $14, selfie_image = $15,
			source_of_funds = $16, employment_status = $17, annual_income = $18,
			status = $19, verification_level = $20, risk_level = $21,
			aml_check_passed = $22, sanctions_check_passed = $23, pep_check_passed = $24,
			reviewed_by = NULL, reviewed_at = NULL, rejection_reason = NULL, notes = NULL, expires_at = NULL,
			submitted_at = $25, ip_address = $26, user_agent = $27, updated_at = $28, meta_data = $29
		WHERE kyc_id = $1
	`,
		record.KYCID, record.FullName, record.DateOfBirth, record.Nationality,
		record.Address, record.City, record.PostalCode, record.Country,
		record.IDType, record.IDNumber, record.IDExpiryDate, record.IDFrontImage, record.IDBackImage, record.ProofOfAddress, record.SelfieImage,
		record.SourceOfFunds, record.EmploymentStatus, record.AnnualIncome,
		record.Status, record.VerificationLevel, record.RiskLevel,
		record.AMLCheckPassed, record.SanctionsCheckPassed, record.PEPCheckPassed,
		record.SubmittedAt, record.IPAddress, record.UserAgent, record.UpdatedAt, metaDataJSON,
	)
	if err != nil {
		return mapError(err, "KYC record", record.KYCID)
	}
	return requireAffected(result, "KYC record", record.KYCID)
}

// GetKYCByID retrieves a KYC record by its ID
func (d Datasource) GetKYCByID(ctx context.Context, id string) (*model.KYCRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `SELECT `+kycColumns+` FROM nordlion.kyc_records WHERE kyc_id = $1`, id)
	record, err := scanKYC(row)
	if err != nil {
		return nil, mapError(err, "KYC record", id)
	}
	return &record, nil
}

// GetKYCByIdentityID retrieves the KYC record owned by an identity
func (d Datasource) GetKYCByIdentityID(ctx context.Context, identityID string) (*model.KYCRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `SELECT `+kycColumns+` FROM nordlion.kyc_records WHERE identity_id = $1`, identityID)
	record, err := scanKYC(row)
	if err != nil {
		return nil, mapError(err, "KYC record for identity", identityID)
	}
	return &record, nil
}

// GetAllKYC lists KYC records newest first. An empty status lists every record.
func (d Datasource) GetAllKYC(ctx context.Context, limit, offset int, status model.KYCStatus) ([]model.KYCRecord, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + kycColumns + ` FROM nordlion.kyc_records`)
	if status != "" {
		args = append(args, status)
		query.WriteString(" WHERE status = $1")
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&query, " ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := d.Conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err, "KYC record", "")
	}
	defer rows.Close()

	records := []model.KYCRecord{}
	for rows.Next() {
		record, err := scanKYC(rows)
		if err != nil {
			return nil, mapError(err, "KYC record", "")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateKYCReview persists the review fields of a transition out of status
// from. The write is guarded on the stored status and submission time, so a
// review of a record that was resubmitted or reviewed meanwhile is a CONFLICT.
func (d Datasource) UpdateKYCReview(ctx context.Context, record *model.KYCRecord, from model.KYCStatus) error {
	record.UpdatedAt = time.Now()
	normaliseTimes(record)
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nordlion.kyc_records
		SET status = $2, verification_level = $3, reviewed_by = $4, reviewed_at = $5, rejection_reason = $6, notes = $7, expires_at = $8, updated_at = $9
		WHERE kyc_id = $1 AND status = $10 AND submitted_at = $11
	`, record.KYCID, record.Status, record.VerificationLevel, record.ReviewedBy, record.ReviewedAt, record.RejectionReason, record.Notes, record.ExpiresAt, record.UpdatedAt,
		from, record.SubmittedAt)
	if err != nil {
		return mapError(err, "KYC record", record.KYCID)
	}
	return requireCurrent(result, record.KYCID)
}

// UpdateKYCCompliance persists the screening flags and risk level. Like
// UpdateKYCReview it only lands on the submission and status it was read from.
func (d Datasource) UpdateKYCCompliance(ctx context.Context, record *model.KYCRecord) error {
	record.UpdatedAt = time.Now()
	normaliseTimes(record)
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nordlion.kyc_records
		SET aml_check_passed = $2, sanctions_check_passed = $3, pep_check_passed = $4, risk_level = $5, notes = $6, updated_at = $7
		WHERE kyc_id = $1 AND status = $8 AND submitted_at = $9
	`, record.KYCID, record.AMLCheckPassed, record.SanctionsCheckPassed, record.PEPCheckPassed, record.RiskLevel, record.Notes, record.UpdatedAt,
		record.Status, record.SubmittedAt)
	if err != nil {
		return mapError(err, "KYC record", record.KYCID)
	}
	return requireCurrent(result, record.KYCID)
}

// GetApprovedExpiredKYC returns up to limit approved records whose expiry is before now.
func (d Datasource) GetApprovedExpiredKYC(ctx context.Context, now time.Time, limit int) ([]model.KYCRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+kycColumns+`
		FROM nordlion.kyc_records
		WHERE status = 'approved' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, mapError(err, "KYC record", "")
	}
	defer rows.Close()

	var records []model.KYCRecord
	for rows.Next() {
		record, err := scanKYC(rows)
		if err != nil {
			return nil, mapError(err, "KYC record", "")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// MarkKYCExpired moves an approved record past its expiry to expired. It
// reports false when the record was changed concurrently and no row matched.
func (d Datasource) MarkKYCExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nordlion.kyc_records
		SET status = 'expired', updated_at = $2
		WHERE kyc_id = $1 AND status = 'approved' AND expires_at < $2
	`, id, now.UTC())
	if err != nil {
		return false, mapError(err, "KYC record", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, mapError(err, "KYC record", id)
	}
	return n > 0, nil
}
