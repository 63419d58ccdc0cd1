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

package nordlion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nordlion/nordlion/internal/apierror"
	"github.com/nordlion/nordlion/model"
)

func notFound(entity string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, entity+" not found", nil)
}

func assertCode(t *testing.T, err error, want apierror.ErrorCode) {
	t.Helper()
	code, ok := apierror.CodeOf(err)
	require.True(t, ok, "expected an APIError, got %v", err)
	assert.Equal(t, want, code)
}

func submission() model.KYCRecord {
	return model.KYCRecord{
		IdentityID:     "idt_1",
		FullName:       "Ada Lovelace",
		DateOfBirth:    time.Date(1985, 12, 10, 0, 0, 0, 0, time.UTC),
		Nationality:    "GB",
		Address:        "12 St James's Square",
		City:           "London",
		PostalCode:     "SW1Y 4JH",
		Country:        "GB",
		IDType:         model.IDTypePassport,
		IDNumber:       "P1234567",
		IDExpiryDate:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		IDFrontImage:   "s3://kyc/front.jpg",
		ProofOfAddress: "s3://kyc/poa.pdf",
		SelfieImage:    "s3://kyc/selfie.jpg",
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		IPAddress:      "203.0.113.7",
	}
}

func storedRecord(status model.KYCStatus, level model.VerificationLevel, expiresAt *time.Time) *model.KYCRecord {
	rec := submission()
	rec.KYCID = "kyc_1"
	rec.Status = status
	rec.VerificationLevel = level
	rec.RiskLevel = model.RiskLevelLow
	rec.ExpiresAt = expiresAt
	rec.SubmittedAt = testNow.Add(-48 * time.Hour)
	if status != model.KYCStatusPending {
		rec.ReviewedBy = "reviewer_1"
	}
	return &rec
}

func at(t time.Time) *time.Time {
	return &t
}

func TestSubmitKYC_NewRecord(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetIdentityByID", "idt_1").Return(&model.Identity{IdentityID: "idt_1"}, nil)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(nil, notFound("kyc record"))
	h.ds.On("CreateKYC", mock.Anything, mock.AnythingOfType("*model.KYCRecord")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.KYCRecord).KYCID = "kyc_new"
		}).Return(nil)

	rec := submission()
	rec.Status = model.KYCStatusApproved
	rec.VerificationLevel = model.VerificationLevelAdvanced

	got, err := h.n.SubmitKYC(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "kyc_new", got.KYCID)
	assert.Equal(t, model.KYCStatusPending, got.Status)
	assert.Equal(t, model.VerificationLevelBasic, got.VerificationLevel)
	assert.Equal(t, model.RiskLevelLow, got.RiskLevel)
	assert.Equal(t, testNow, got.SubmittedAt)
	h.ds.AssertNotCalled(t, "ResubmitKYC", mock.Anything, mock.Anything)
}

func TestSubmitKYC_ResubmissionResetsReview(t *testing.T) {
	h := newTestNordLion(t)
	existing := storedRecord(model.KYCStatusApproved, model.VerificationLevelAdvanced, at(testNow.Add(time.Hour)))
	createdAt := testNow.Add(-72 * time.Hour)
	existing.CreatedAt = createdAt

	h.ds.On("GetIdentityByID", "idt_1").Return(&model.Identity{IdentityID: "idt_1"}, nil)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(existing, nil)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(existing, nil)
	h.ds.On("ResubmitKYC", mock.Anything, mock.MatchedBy(func(r *model.KYCRecord) bool {
		return r.KYCID == "kyc_1" && r.Status == model.KYCStatusPending && r.ExpiresAt == nil && r.ReviewedBy == ""
	})).Return(nil)

	got, err := h.n.SubmitKYC(context.Background(), submission())
	require.NoError(t, err)
	assert.Equal(t, "kyc_1", got.KYCID)
	assert.Equal(t, createdAt, got.CreatedAt)
	h.ds.AssertNotCalled(t, "CreateKYC", mock.Anything, mock.Anything)
	assert.False(t, h.mr.Exists("kyc-review:kyc_1"))

	// the reset record replaces the cached approval
	cached, err := h.n.GetKYCByIdentity(context.Background(), "idt_1")
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusPending, cached.Status)
	h.ds.AssertNumberOfCalls(t, "GetKYCByIdentityID", 1)
}

func TestSubmitKYC_ResubmissionWaitsForReviewer(t *testing.T) {
	h := newTestNordLion(t)
	shortLockWait(t)
	existing := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)

	h.ds.On("GetIdentityByID", "idt_1").Return(&model.Identity{IdentityID: "idt_1"}, nil)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(existing, nil)
	require.NoError(t, h.mr.Set("kyc-review:kyc_1", "reviewer-request"))

	_, err := h.n.SubmitKYC(context.Background(), submission())
	assertCode(t, err, apierror.ErrConflict)
	h.ds.AssertNotCalled(t, "ResubmitKYC", mock.Anything, mock.Anything)
	h.ds.AssertNotCalled(t, "CreateKYC", mock.Anything, mock.Anything)
	assert.Equal(t, "reviewer-request", mustGet(t, h, "kyc-review:kyc_1"))
}

func TestSubmitKYC_ResubmissionRunsAfterReviewerReleases(t *testing.T) {
	h := newTestNordLion(t)
	existing := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)

	h.ds.On("GetIdentityByID", "idt_1").Return(&model.Identity{IdentityID: "idt_1"}, nil)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(existing, nil)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(existing, nil)
	h.ds.On("ResubmitKYC", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, h.mr.Set("kyc-review:kyc_1", "reviewer-request"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		h.mr.Del("kyc-review:kyc_1")
	}()

	got, err := h.n.SubmitKYC(context.Background(), submission())
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusPending, got.Status)
	h.ds.AssertNumberOfCalls(t, "ResubmitKYC", 1)
}

func TestSubmitKYC_InvalidSubmission(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetIdentityByID", "idt_1").Return(&model.Identity{IdentityID: "idt_1"}, nil)

	rec := submission()
	rec.IDType = model.IDTypeDriversLicense

	_, err := h.n.SubmitKYC(context.Background(), rec)
	assertCode(t, err, apierror.ErrInvalidInput)
	h.ds.AssertNotCalled(t, "CreateKYC", mock.Anything, mock.Anything)
}

func TestSubmitKYC_UnknownIdentity(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetIdentityByID", "idt_1").Return(nil, notFound("identity"))

	_, err := h.n.SubmitKYC(context.Background(), submission())
	assertCode(t, err, apierror.ErrNotFound)
}

func TestSubmitKYC_DuplicateDocument(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetIdentityByID", "idt_1").Return(&model.Identity{IdentityID: "idt_1"}, nil)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(nil, notFound("kyc record"))
	h.ds.On("CreateKYC", mock.Anything, mock.Anything).Return(apierror.NewAPIError(apierror.ErrConflict, "kyc_records_id_number_key", nil))

	_, err := h.n.SubmitKYC(context.Background(), submission())
	assertCode(t, err, apierror.ErrConflict)
}

func TestGetKYCByIdentity_ReadsThroughCache(t *testing.T) {
	h := newTestNordLion(t)
	rec := storedRecord(model.KYCStatusApproved, model.VerificationLevelBasic, nil)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(rec, nil).Once()

	first, err := h.n.GetKYCByIdentity(context.Background(), "idt_1")
	require.NoError(t, err)
	second, err := h.n.GetKYCByIdentity(context.Background(), "idt_1")
	require.NoError(t, err)

	assert.Equal(t, first.KYCID, second.KYCID)
	assert.Equal(t, first.Status, second.Status)
	h.ds.AssertNumberOfCalls(t, "GetKYCByIdentityID", 1)
}

func TestGetKYCByIdentity_FillKeepsNewerWrite(t *testing.T) {
	h := newTestNordLion(t)
	ctx := context.Background()
	stale := storedRecord(model.KYCStatusApproved, model.VerificationLevelAdvanced, nil)
	fresh := storedRecord(model.KYCStatusPending, model.VerificationLevelBasic, nil)

	// a resubmission commits and caches between the read and the fill
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Run(func(args mock.Arguments) {
		h.n.storeRecord(ctx, fresh)
	}).Return(stale, nil).Once()

	got, err := h.n.GetKYCByIdentity(ctx, "idt_1")
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusApproved, got.Status)

	decision, err := h.n.CanTransact(ctx, "idt_1", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, model.KYCStatusPending, decision.Status)
	h.ds.AssertNumberOfCalls(t, "GetKYCByIdentityID", 1)
}

func TestGetAllKYC_Paging(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetAllKYC", mock.Anything, 100, 0, model.KYCStatusPending).Return([]model.KYCRecord{}, nil)
	h.ds.On("GetAllKYC", mock.Anything, 20, 40, model.KYCStatus("")).Return([]model.KYCRecord{}, nil)

	_, err := h.n.GetAllKYC(context.Background(), 500, -3, model.KYCStatusPending)
	require.NoError(t, err)
	_, err = h.n.GetAllKYC(context.Background(), 0, 40, "")
	require.NoError(t, err)

	_, err = h.n.GetAllKYC(context.Background(), 10, 0, "archived")
	assertCode(t, err, apierror.ErrInvalidInput)
	h.ds.AssertExpectations(t)
}

func TestReviewKYC_Approve(t *testing.T) {
	h := newTestNordLion(t)
	rec := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(rec, nil)
	h.ds.On("UpdateKYCReview", mock.Anything, rec, model.KYCStatusUnderReview).Return(nil)

	expires := testNow.AddDate(1, 0, 0)
	got, err := h.n.ReviewKYC(context.Background(), "kyc_1", model.ReviewAction{
		Status:            model.KYCStatusApproved,
		ReviewedBy:        "reviewer_2",
		VerificationLevel: model.VerificationLevelIntermediate,
		ExpiresAt:         &expires,
		Notes:             "documents verified",
	})
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusApproved, got.Status)
	assert.Equal(t, model.VerificationLevelIntermediate, got.VerificationLevel)
	assert.Equal(t, "reviewer_2", got.ReviewedBy)
	assert.Equal(t, testNow, *got.ReviewedAt)
	assert.Equal(t, expires, *got.ExpiresAt)
	assert.Equal(t, "documents verified", got.Notes)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.n.metrics.Transitions.WithLabelValues("under_review", "approved")))

	// the review lock is released
	assert.False(t, h.mr.Exists("kyc-review:kyc_1"))

	cached, err := h.n.GetKYCByIdentity(context.Background(), "idt_1")
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusApproved, cached.Status)
	h.ds.AssertNotCalled(t, "GetKYCByIdentityID", mock.Anything, mock.Anything)
}

func TestReviewKYC_StaleReviewIsRefused(t *testing.T) {
	h := newTestNordLion(t)
	rec := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(rec, nil)
	h.ds.On("UpdateKYCReview", mock.Anything, rec, model.KYCStatusUnderReview).
		Return(apierror.NewAPIError(apierror.ErrConflict, "KYC record kyc_1 was changed by another request", nil))

	_, err := h.n.ReviewKYC(context.Background(), "kyc_1", model.ReviewAction{Status: model.KYCStatusApproved, ReviewedBy: "reviewer_2"})
	assertCode(t, err, apierror.ErrConflict)
	assert.False(t, h.mr.Exists("kyc:identity:idt_1"))
	assert.False(t, h.mr.Exists("kyc-review:kyc_1"))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.n.metrics.Transitions.WithLabelValues("under_review", "approved")))
}

func TestReviewKYC_Reject(t *testing.T) {
	h := newTestNordLion(t)
	rec := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(rec, nil)
	h.ds.On("UpdateKYCReview", mock.Anything, rec, model.KYCStatusUnderReview).Return(nil)

	_, err := h.n.ReviewKYC(context.Background(), "kyc_1", model.ReviewAction{Status: model.KYCStatusRejected, ReviewedBy: "reviewer_2"})
	assertCode(t, err, apierror.ErrInvalidInput)
	h.ds.AssertNotCalled(t, "UpdateKYCReview", mock.Anything, mock.Anything, mock.Anything)

	got, err := h.n.ReviewKYC(context.Background(), "kyc_1", model.ReviewAction{
		Status:          model.KYCStatusRejected,
		ReviewedBy:      "reviewer_2",
		RejectionReason: "document is blurred",
	})
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusRejected, got.Status)
	assert.Equal(t, "document is blurred", got.RejectionReason)
}

func TestReviewKYC_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		status model.KYCStatus
		action model.ReviewAction
	}{
		{name: "no reviewer", status: model.KYCStatusPending, action: model.ReviewAction{Status: model.KYCStatusUnderReview}},
		{name: "unknown status", status: model.KYCStatusPending, action: model.ReviewAction{Status: "archived", ReviewedBy: "r"}},
		{name: "skip review", status: model.KYCStatusPending, action: model.ReviewAction{Status: model.KYCStatusApproved, ReviewedBy: "r"}},
		{name: "reopen rejected", status: model.KYCStatusRejected, action: model.ReviewAction{Status: model.KYCStatusUnderReview, ReviewedBy: "r"}},
		{name: "expiry in the past", status: model.KYCStatusUnderReview, action: model.ReviewAction{
			Status: model.KYCStatusApproved, ReviewedBy: "r", ExpiresAt: at(testNow.Add(-time.Minute)),
		}},
		{name: "unknown level", status: model.KYCStatusUnderReview, action: model.ReviewAction{
			Status: model.KYCStatusApproved, ReviewedBy: "r", VerificationLevel: "gold",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestNordLion(t)
			h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(storedRecord(tt.status, model.VerificationLevelBasic, nil), nil)

			_, err := h.n.ReviewKYC(context.Background(), "kyc_1", tt.action)
			assertCode(t, err, apierror.ErrInvalidInput)
			h.ds.AssertNotCalled(t, "UpdateKYCReview", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateCompliance(t *testing.T) {
	h := newTestNordLion(t)
	rec := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(rec, nil)
	h.ds.On("UpdateKYCCompliance", mock.Anything, rec).Return(nil)

	passed := true
	high := model.RiskLevelHigh
	got, err := h.n.UpdateCompliance(context.Background(), "kyc_1", model.ComplianceUpdate{
		AMLCheckPassed: &passed,
		RiskLevel:      &high,
		ReviewedBy:     "compliance_1",
	})
	require.NoError(t, err)
	assert.True(t, got.AMLCheckPassed)
	assert.False(t, got.PEPCheckPassed)
	assert.Equal(t, model.RiskLevelHigh, got.RiskLevel)
	assert.Equal(t, model.KYCStatusUnderReview, got.Status)

	_, err = h.n.UpdateCompliance(context.Background(), "kyc_1", model.ComplianceUpdate{AMLCheckPassed: &passed})
	assertCode(t, err, apierror.ErrInvalidInput)
}

func TestUpdateCompliance_NotesOnPendingRecord(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(storedRecord(model.KYCStatusPending, model.VerificationLevelBasic, nil), nil)

	_, err := h.n.UpdateCompliance(context.Background(), "kyc_1", model.ComplianceUpdate{
		Notes:      "looks fine",
		ReviewedBy: "compliance_1",
	})
	assertCode(t, err, apierror.ErrInvalidInput)
	h.ds.AssertNotCalled(t, "UpdateKYCCompliance", mock.Anything, mock.Anything)
}

func TestScreenKYC_MockProvider(t *testing.T) {
	h := newTestNordLion(t)
	rec := storedRecord(model.KYCStatusUnderReview, model.VerificationLevelBasic, nil)
	rec.FullName = "Sanctioned Person"
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(rec, nil)
	h.ds.On("UpdateKYCCompliance", mock.Anything, rec).Return(nil)

	got, result, err := h.n.ScreenKYC(context.Background(), "kyc_1", "mock_provider", "compliance_1")
	require.NoError(t, err)
	assert.False(t, result.SanctionsCheckPassed)
	assert.False(t, got.AMLCheckPassed)
	assert.False(t, got.SanctionsCheckPassed)
	assert.Equal(t, model.RiskLevelHigh, got.RiskLevel)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.n.metrics.Screenings.WithLabelValues("mock_provider", "ok")))
}

func TestScreenKYC_UnknownProvider(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetKYCByID", mock.Anything, "kyc_1").Return(storedRecord(model.KYCStatusPending, model.VerificationLevelBasic, nil), nil)

	_, _, err := h.n.ScreenKYC(context.Background(), "kyc_1", "acme", "compliance_1")
	assertCode(t, err, apierror.ErrInvalidInput)
	h.ds.AssertNotCalled(t, "UpdateKYCCompliance", mock.Anything, mock.Anything)
}

func TestCanTransact(t *testing.T) {
	tests := []struct {
		name        string
		record      *model.KYCRecord
		amount      string
		wantAllowed bool
		wantReason  string
		wantCeiling string
	}{
		{name: "basic at ceiling", record: storedRecord(model.KYCStatusApproved, model.VerificationLevelBasic, nil),
			amount: "50000", wantAllowed: true, wantReason: ReasonApproved, wantCeiling: "50000"},
		{name: "basic over ceiling", record: storedRecord(model.KYCStatusApproved, model.VerificationLevelBasic, nil),
			amount: "50000.01", wantReason: ReasonExceedsTierCeiling, wantCeiling: "50000"},
		{name: "intermediate under ceiling", record: storedRecord(model.KYCStatusApproved, model.VerificationLevelIntermediate, at(testNow.Add(time.Hour))),
			amount: "249999.99", wantAllowed: true, wantReason: ReasonApproved, wantCeiling: "250000"},
		{name: "advanced unbounded", record: storedRecord(model.KYCStatusApproved, model.VerificationLevelAdvanced, nil),
			amount: "1000000000", wantAllowed: true, wantReason: ReasonApproved},
		{name: "approved but past expiry", record: storedRecord(model.KYCStatusApproved, model.VerificationLevelAdvanced, at(testNow.Add(-time.Second))),
			amount: "1", wantReason: ReasonExpired},
		{name: "swept expired", record: storedRecord(model.KYCStatusExpired, model.VerificationLevelBasic, at(testNow.Add(-time.Hour))),
			amount: "1", wantReason: ReasonExpired, wantCeiling: "50000"},
		{name: "pending", record: storedRecord(model.KYCStatusPending, model.VerificationLevelBasic, nil),
			amount: "0", wantReason: ReasonNotApproved, wantCeiling: "50000"},
		{name: "rejected", record: storedRecord(model.KYCStatusRejected, model.VerificationLevelAdvanced, nil),
			amount: "1", wantReason: ReasonNotApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestNordLion(t)
			h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(tt.record, nil)

			decision, err := h.n.CanTransact(context.Background(), "idt_1", decimal.RequireFromString(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, decision.Allowed)
			assert.Equal(t, tt.wantReason, decision.Reason)
			assert.Equal(t, "EUR", decision.Currency)
			assert.Equal(t, tt.record.Status, decision.Status)
			if tt.wantCeiling == "" {
				assert.Nil(t, decision.Ceiling)
			} else {
				require.NotNil(t, decision.Ceiling)
				assert.Equal(t, tt.wantCeiling, decision.Ceiling.String())
			}
		})
	}
}

func TestCanTransact_NoRecord(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(nil, notFound("kyc record"))

	decision, err := h.n.CanTransact(context.Background(), "idt_1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoKYCRecord, decision.Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.n.metrics.TransactDecisions.WithLabelValues("false", "")))
}

func TestCanTransact_NegativeAmount(t *testing.T) {
	h := newTestNordLion(t)

	_, err := h.n.CanTransact(context.Background(), "idt_1", decimal.NewFromInt(-5))
	assertCode(t, err, apierror.ErrInvalidInput)
	h.ds.AssertNotCalled(t, "GetKYCByIdentityID", mock.Anything, mock.Anything)
}

func TestCanTransact_UnknownLevelIsDataIntegrityError(t *testing.T) {
	h := newTestNordLion(t)
	h.ds.On("GetKYCByIdentityID", mock.Anything, "idt_1").Return(storedRecord(model.KYCStatusApproved, "platinum", nil), nil)

	_, err := h.n.CanTransact(context.Background(), "idt_1", decimal.NewFromInt(1))
	assertCode(t, err, apierror.ErrDataIntegrity)
}

func TestSweepExpired_DisabledByDefault(t *testing.T) {
	h := newTestNordLion(t)

	n, err := h.n.SweepExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, n)
	h.ds.AssertNotCalled(t, "GetApprovedExpiredKYC", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepExpired(t *testing.T) {
	h := newTestNordLion(t)
	h.conf.KYC.PersistExpiry = true

	expired := []model.KYCRecord{
		*storedRecord(model.KYCStatusApproved, model.VerificationLevelBasic, at(testNow.Add(-time.Hour))),
		*storedRecord(model.KYCStatusApproved, model.VerificationLevelAdvanced, at(testNow.Add(-time.Minute))),
	}
	expired[1].KYCID = "kyc_2"
	expired[1].IdentityID = "idt_2"

	h.ds.On("GetApprovedExpiredKYC", mock.Anything, testNow, sweepBatchSize).Return(expired, nil)
	h.ds.On("MarkKYCExpired", mock.Anything, "kyc_1", testNow).Return(true, nil)
	// reviewed concurrently, no longer approved
	h.ds.On("MarkKYCExpired", mock.Anything, "kyc_2", testNow).Return(false, nil)

	n, err := h.n.SweepExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.n.metrics.SweptExpired))
	assert.False(t, h.mr.Exists(sweepLockKey))
}

func TestSweepExpired_HoldsLockAcrossBatches(t *testing.T) {
	h := newTestNordLion(t)
	h.conf.KYC.PersistExpiry = true

	batch := make([]model.KYCRecord, sweepBatchSize)
	for i := range batch {
		batch[i] = *storedRecord(model.KYCStatusApproved, model.VerificationLevelBasic, at(testNow.Add(-time.Hour)))
		batch[i].KYCID = fmt.Sprintf("kyc_%d", i)
		batch[i].IdentityID = fmt.Sprintf("idt_%d", i)
	}
	h.ds.On("GetApprovedExpiredKYC", mock.Anything, testNow, sweepBatchSize).Return(batch, nil).Once()
	h.ds.On("GetApprovedExpiredKYC", mock.Anything, testNow, sweepBatchSize).Run(func(args mock.Arguments) {
		ttl := h.mr.TTL(sweepLockKey)
		assert.Greater(t, ttl, sweepLockTTL-time.Minute)
	}).Return([]model.KYCRecord{}, nil).Once()
	h.ds.On("MarkKYCExpired", mock.Anything, mock.Anything, testNow).Return(true, nil)

	n, err := h.n.SweepExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, sweepBatchSize, n)
	h.ds.AssertNumberOfCalls(t, "GetApprovedExpiredKYC", 2)
	assert.False(t, h.mr.Exists(sweepLockKey))
}

func TestSweepExpired_SkipsWhenAnotherProcessSweeps(t *testing.T) {
	h := newTestNordLion(t)
	h.conf.KYC.PersistExpiry = true
	require.NoError(t, h.mr.Set(sweepLockKey, "other-replica"))

	n, err := h.n.SweepExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, n)
	h.ds.AssertNotCalled(t, "GetApprovedExpiredKYC", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepExpired_DatasourceError(t *testing.T) {
	h := newTestNordLion(t)
	h.conf.KYC.PersistExpiry = true
	h.ds.On("GetApprovedExpiredKYC", mock.Anything, testNow, sweepBatchSize).Return(nil, errors.New("connection reset"))

	_, err := h.n.SweepExpired(context.Background(), testNow)
	assert.Error(t, err)
	assert.False(t, h.mr.Exists(sweepLockKey))
}

func TestRequestExpirySweep(t *testing.T) {
	h := newTestNordLion(t)

	err := h.n.RequestExpirySweep(context.Background(), "ops_1")
	assertCode(t, err, apierror.ErrBadRequest)

	h.conf.KYC.PersistExpiry = true
	require.NoError(t, h.n.RequestExpirySweep(context.Background(), "ops_1"))
	pending, err := h.mr.List("asynq:{kyc_expiry_sweep}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestProcessExpirySweep(t *testing.T) {
	h := newTestNordLion(t)
	h.conf.KYC.PersistExpiry = true
	h.ds.On("GetApprovedExpiredKYC", mock.Anything, testNow, sweepBatchSize).Return([]model.KYCRecord{}, nil)

	err := h.n.ProcessExpirySweep(context.Background(), asynq.NewTask("kyc_expiry_sweep", []byte(`{"requested_by":"ops_1"}`)))
	require.NoError(t, err)
	h.ds.AssertExpectations(t)
}
