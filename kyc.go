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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/mssola/useragent"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nordlion/nordlion/internal/apierror"
	"github.com/nordlion/nordlion/internal/cache"
	redlock "github.com/nordlion/nordlion/internal/lock"
	"github.com/nordlion/nordlion/kyc"
	"github.com/nordlion/nordlion/model"
)

var tracer = otel.Tracer("nordlion.kyc")

// reviewLockWait is how long a writer waits for another writer of the same record.
var reviewLockWait = 5 * time.Second

const (
	reviewLockTimeout = 30 * time.Second
	sweepLockKey      = "kyc-expiry-sweep"
	sweepLockTTL      = 10 * time.Minute
	sweepBatchSize    = 100

	defaultPageSize = 20
	maxPageSize     = 100
)

// Reasons reported in a TransactDecision.
const (
	ReasonApproved           = "approved"
	ReasonNoKYCRecord        = "no_kyc_record"
	ReasonNotApproved        = "not_approved"
	ReasonExpired            = "expired"
	ReasonExceedsTierCeiling = "exceeds_tier_ceiling"
)

// TransactDecision explains whether an identity may make a transaction of a given amount.
type TransactDecision struct {
	Allowed  bool                    `json:"allowed"`
	Reason   string                  `json:"reason"`
	Amount   decimal.Decimal         `json:"amount"`
	Ceiling  *decimal.Decimal        `json:"ceiling"` // nil means unbounded or unknown
	Currency string                  `json:"currency"`
	KYCID    string                  `json:"kyc_id,omitempty"`
	Level    model.VerificationLevel `json:"verification_level,omitempty"`
	Status   model.KYCStatus         `json:"status,omitempty"`
}

func recordSpanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (n *NordLion) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := n.cache.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("failed to invalidate cache")
		}
	}
}

func (n *NordLion) cacheTTL() time.Duration {
	return time.Duration(n.config.KYC.CacheTTLSec) * time.Second
}

// storeRecord replaces the cached copy after a committed write. Writers call it
// while still holding the record lock, so cached entries follow commit order.
// When the write fails the entry is dropped and the next read refills it.
func (n *NordLion) storeRecord(ctx context.Context, record *model.KYCRecord) {
	key := cache.KYCByIdentityKey(record.IdentityID)
	if err := n.cache.Set(ctx, key, record, n.cacheTTL()); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("kyc cache write failed")
		n.invalidate(ctx, key)
	}
}

// forgetIdentity leaves a tombstone for an identity whose record is gone, so a
// reader that loaded the record before the delete cannot put it back.
func (n *NordLion) forgetIdentity(ctx context.Context, identityID string) {
	key := cache.KYCByIdentityKey(identityID)
	if err := n.cache.Set(ctx, key, model.KYCRecord{IdentityID: identityID}, n.cacheTTL()); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("kyc cache write failed")
		n.invalidate(ctx, key)
	}
}

// logSubmission writes the audit trail of who submitted a record and from where.
func logSubmission(record *model.KYCRecord) {
	fields := logrus.Fields{
		"kyc_id":      record.KYCID,
		"identity_id": record.IdentityID,
		"ip_address":  record.IPAddress,
	}
	if record.UserAgent != "" {
		ua := useragent.New(record.UserAgent)
		browser, version := ua.Browser()
		fields["browser"] = strings.TrimSpace(browser + " " + version)
		fields["os"] = ua.OS()
		fields["mobile"] = ua.Mobile()
		fields["bot"] = ua.Bot()
	}
	logrus.WithFields(fields).Info("kyc submission received")
}

// SubmitKYC stores a new KYC submission for an identity. A resubmission for an
// identity that already has a record replaces the submitted data and restarts
// the review from pending. It takes the record lock, so it never interleaves
// with a review or compliance write on the same record.
func (n *NordLion) SubmitKYC(ctx context.Context, record model.KYCRecord) (*model.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "SubmitKYC")
	defer span.End()

	if _, err := n.datasource.GetIdentityByID(record.IdentityID); err != nil {
		return nil, recordSpanError(span, err)
	}

	record.ResetReview(n.now())
	if err := record.Validate(); err != nil {
		return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil))
	}

	existing, err := n.datasource.GetKYCByIdentityID(ctx, record.IdentityID)
	switch code, _ := apierror.CodeOf(err); {
	case err == nil:
		var stored *model.KYCRecord
		stored, err = n.withRecordLock(ctx, existing.KYCID, func(current *model.KYCRecord) error {
			record.KYCID = current.KYCID
			record.CreatedAt = current.CreatedAt
			if err := n.datasource.ResubmitKYC(ctx, &record); err != nil {
				return err
			}
			*current = record
			return nil
		})
		if err == nil {
			record = *stored
		}
	case code == apierror.ErrNotFound:
		if err = n.datasource.CreateKYC(ctx, &record); err == nil {
			n.storeRecord(ctx, &record)
		}
	}
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	span.SetAttributes(attribute.String("kyc.id", record.KYCID), attribute.Bool("kyc.resubmission", existing != nil))
	logSubmission(&record)
	n.sendWebhook(EventKYCSubmitted, kycEvent(&record))
	return &record, nil
}

func (n *NordLion) GetKYC(ctx context.Context, id string) (*model.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "GetKYC")
	defer span.End()

	record, err := n.datasource.GetKYCByID(ctx, id)
	return record, recordSpanError(span, err)
}

// GetKYCByIdentity reads through the cache. A fill never replaces an entry a
// writer stored meanwhile.
func (n *NordLion) GetKYCByIdentity(ctx context.Context, identityID string) (*model.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "GetKYCByIdentity")
	defer span.End()

	key := cache.KYCByIdentityKey(identityID)
	var cached model.KYCRecord
	err := n.cache.Get(ctx, key, &cached)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		if cached.KYCID == "" {
			return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("KYC record for identity %s not found", identityID), nil))
		}
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logrus.WithError(err).WithField("key", key).Warn("kyc cache read failed")
	}

	record, err := n.datasource.GetKYCByIdentityID(ctx, identityID)
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := n.cache.SetIfAbsent(ctx, key, record, n.cacheTTL()); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("kyc cache write failed")
	}
	return record, nil
}

// GetAllKYC lists records newest first, optionally filtered by status.
func (n *NordLion) GetAllKYC(ctx context.Context, limit, offset int, status model.KYCStatus) ([]model.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "GetAllKYC")
	defer span.End()

	if status != "" && !status.IsValid() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown status %q", status), nil)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	records, err := n.datasource.GetAllKYC(ctx, limit, offset, status)
	return records, recordSpanError(span, err)
}

// lockRecord takes the per-record lock shared by every writer of a KYC record.
func (n *NordLion) lockRecord(ctx context.Context, id string) (func(), error) {
	locker := redlock.NewLocker(n.redis, redlock.ReviewKey(id), uuid.NewString())
	if err := locker.WaitLock(ctx, reviewLockTimeout, reviewLockWait); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "record is being changed by another request", err)
	}
	return func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.WithError(err).WithField("kyc_id", id).Warn("failed to release record lock")
		}
	}, nil
}

// withRecordLock loads the record under its lock, runs fn and caches the result.
func (n *NordLion) withRecordLock(ctx context.Context, id string, fn func(record *model.KYCRecord) error) (*model.KYCRecord, error) {
	unlock, err := n.lockRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	record, err := n.datasource.GetKYCByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(record); err != nil {
		return nil, err
	}
	n.storeRecord(ctx, record)
	return record, nil
}

// ReviewKYC moves a record through the review lifecycle on behalf of a reviewer.
func (n *NordLion) ReviewKYC(ctx context.Context, id string, action model.ReviewAction) (*model.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "ReviewKYC")
	defer span.End()
	span.SetAttributes(attribute.String("kyc.id", id), attribute.String("kyc.target_status", string(action.Status)))

	if strings.TrimSpace(action.ReviewedBy) == "" {
		return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, model.ErrReviewerRequired.Error(), nil))
	}
	if !action.Status.IsValid() {
		return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown status %q", action.Status), nil))
	}

	var from model.KYCStatus
	record, err := n.withRecordLock(ctx, id, func(record *model.KYCRecord) error {
		now := n.now()
		from = record.Status
		if !record.CanTransitionTo(action.Status) {
			return apierror.NewAPIError(apierror.ErrInvalidInput,
				fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, record.Status, action.Status).Error(), nil)
		}

		switch action.Status {
		case model.KYCStatusRejected:
			if strings.TrimSpace(action.RejectionReason) == "" {
				return apierror.NewAPIError(apierror.ErrInvalidInput, "rejection_reason is required when rejecting", nil)
			}
			record.RejectionReason = action.RejectionReason
		case model.KYCStatusApproved:
			if action.VerificationLevel != "" {
				if !action.VerificationLevel.IsValid() {
					return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown verification level %q", action.VerificationLevel), nil)
				}
				record.VerificationLevel = action.VerificationLevel
			}
			if action.ExpiresAt != nil {
				if !action.ExpiresAt.After(now) {
					return apierror.NewAPIError(apierror.ErrInvalidInput, "expires_at must be in the future", nil)
				}
				expiresAt := *action.ExpiresAt
				record.ExpiresAt = &expiresAt
			}
		}

		record.Status = action.Status
		record.ReviewedBy = action.ReviewedBy
		record.ReviewedAt = &now
		if action.Notes != "" {
			record.Notes = action.Notes
		}
		return n.datasource.UpdateKYCReview(ctx, record, from)
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	n.metrics.ObserveTransition(string(from), string(record.Status))
	logrus.WithFields(logrus.Fields{
		"kyc_id":      record.KYCID,
		"from":        from,
		"to":          record.Status,
		"reviewed_by": record.ReviewedBy,
	}).Info("kyc status changed")
	n.sendWebhook(eventFromStatus(record.Status), kycEvent(record))
	return record, nil
}

// UpdateCompliance records a compliance reviewer's screening outcome.
func (n *NordLion) UpdateCompliance(ctx context.Context, id string, update model.ComplianceUpdate) (*model.KYCRecord, error) {
	ctx, span := tracer.Start(ctx, "UpdateCompliance")
	defer span.End()

	if strings.TrimSpace(update.ReviewedBy) == "" {
		return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, model.ErrReviewerRequired.Error(), nil))
	}

	record, err := n.withRecordLock(ctx, id, func(record *model.KYCRecord) error {
		if err := update.Apply(record); err != nil {
			return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
		}
		return n.datasource.UpdateKYCCompliance(ctx, record)
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	logrus.WithFields(logrus.Fields{
		"kyc_id":      record.KYCID,
		"reviewed_by": update.ReviewedBy,
		"risk_level":  record.RiskLevel,
	}).Info("kyc compliance updated")
	n.sendWebhook(EventKYCComplianceUpdated, kycEvent(record))
	return record, nil
}

// ScreenKYC runs a screening provider and files its outcome as a compliance update.
func (n *NordLion) ScreenKYC(ctx context.Context, id, provider, reviewedBy string) (*model.KYCRecord, *kyc.ScreeningResult, error) {
	ctx, span := tracer.Start(ctx, "ScreenKYC")
	defer span.End()
	span.SetAttributes(attribute.String("kyc.id", id), attribute.String("screening.provider", provider))

	if strings.TrimSpace(reviewedBy) == "" {
		return nil, nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, model.ErrReviewerRequired.Error(), nil))
	}

	record, err := n.datasource.GetKYCByID(ctx, id)
	if err != nil {
		return nil, nil, recordSpanError(span, err)
	}

	result, err := n.screening.Screen(ctx, provider, record)
	if err != nil {
		if errors.Is(err, kyc.ErrProviderNotFound) {
			return nil, nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil))
		}
		return nil, nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInternalServer, "screening failed", err))
	}

	record, err = n.UpdateCompliance(ctx, id, result.ComplianceUpdate(reviewedBy))
	if err != nil {
		return nil, nil, err
	}
	return record, result, nil
}

// CanTransact decides whether the identity may make a transaction of amount.
// A record with a verification level outside the tier table is a data
// integrity error, never a default ceiling.
func (n *NordLion) CanTransact(ctx context.Context, identityID string, amount decimal.Decimal) (*TransactDecision, error) {
	ctx, span := tracer.Start(ctx, "CanTransact")
	defer span.End()

	if amount.IsNegative() {
		return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrInvalidInput, model.ErrNegativeAmount.Error(), nil))
	}

	decision := &TransactDecision{Amount: amount, Currency: n.config.KYC.Currency}

	record, err := n.GetKYCByIdentity(ctx, identityID)
	if err != nil {
		if code, _ := apierror.CodeOf(err); code == apierror.ErrNotFound {
			decision.Reason = ReasonNoKYCRecord
			n.metrics.ObserveDecision(false, "")
			return decision, nil
		}
		return nil, recordSpanError(span, err)
	}

	now := n.now()
	decision.KYCID = record.KYCID
	decision.Level = record.VerificationLevel
	decision.Status = record.Status

	allowed, err := record.CanTransactAt(amount, now)
	if err != nil {
		if errors.Is(err, model.ErrUnknownVerificationLevel) {
			return nil, recordSpanError(span, apierror.NewAPIError(apierror.ErrDataIntegrity, err.Error(), err))
		}
		return nil, recordSpanError(span, err)
	}

	if ceiling, bounded, err := model.TierCeiling(record.VerificationLevel); err == nil && bounded {
		decision.Ceiling = &ceiling
	}

	decision.Allowed = allowed
	switch {
	case allowed:
		decision.Reason = ReasonApproved
	case record.Status == model.KYCStatusApproved && record.IsExpiredAt(now), record.Status == model.KYCStatusExpired:
		decision.Reason = ReasonExpired
	case !record.IsApprovedAt(now):
		decision.Reason = ReasonNotApproved
	default:
		decision.Reason = ReasonExceedsTierCeiling
	}

	span.SetAttributes(attribute.Bool("kyc.allowed", allowed), attribute.String("kyc.reason", decision.Reason))
	n.metrics.ObserveDecision(allowed, string(record.VerificationLevel))
	return decision, nil
}

// SweepExpired persists status expired for approved records whose ExpiresAt has
// passed. The predicates never depend on it; it only keeps stored status
// readable for reporting. It is a no-op unless kyc.persist_expiry is set, and
// only one process sweeps at a time.
func (n *NordLion) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	if !n.config.KYC.PersistExpiry {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "SweepExpired")
	defer span.End()

	locker := redlock.NewLocker(n.redis, sweepLockKey, uuid.NewString())
	if err := locker.Lock(ctx, sweepLockTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			logrus.Debug("expiry sweep already running elsewhere")
			return 0, nil
		}
		return 0, recordSpanError(span, err)
	}
	defer func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.WithError(err).Warn("failed to release sweep lock")
		}
	}()

	swept := 0
	for batch := 0; ; batch++ {
		if batch > 0 {
			// a long sweep must not lose the lock to a second sweeper
			if err := locker.ExtendLock(ctx, sweepLockTTL); err != nil {
				return swept, recordSpanError(span, err)
			}
		}
		records, err := n.datasource.GetApprovedExpiredKYC(ctx, now, sweepBatchSize)
		if err != nil {
			return swept, recordSpanError(span, err)
		}

		marked := 0
		for i := range records {
			record := &records[i]
			ok, err := n.datasource.MarkKYCExpired(ctx, record.KYCID, now)
			if err != nil {
				return swept, recordSpanError(span, err)
			}
			if !ok {
				continue
			}
			marked++
			record.Status = model.KYCStatusExpired
			// not under the record lock, so drop the entry rather than overwrite a newer one
			n.invalidate(ctx, cache.KYCByIdentityKey(record.IdentityID))
			n.metrics.ObserveTransition(string(model.KYCStatusApproved), string(model.KYCStatusExpired))
			n.sendWebhook(eventFromStatus(model.KYCStatusExpired), kycEvent(record))
		}
		swept += marked

		if len(records) < sweepBatchSize || marked == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("kyc.swept", swept))
	n.metrics.ObserveSwept(swept)
	return swept, nil
}

// RequestExpirySweep queues a sweep for the workers. It refuses when expiry
// persistence is disabled so callers do not wait on a sweep that never writes.
func (n *NordLion) RequestExpirySweep(ctx context.Context, requestedBy string) error {
	if !n.config.KYC.PersistExpiry {
		return apierror.NewAPIError(apierror.ErrBadRequest, "expiry persistence is disabled", nil)
	}
	return n.queue.EnqueueExpirySweep(ctx, requestedBy)
}

// ProcessExpirySweep is the asynq handler for sweeps requested through RequestExpirySweep.
func (n *NordLion) ProcessExpirySweep(ctx context.Context, task *asynq.Task) error {
	var payload struct {
		RequestedBy string `json:"requested_by"`
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("Error unmarshaling sweep payload: %v", err)
		return err
	}

	swept, err := n.SweepExpired(ctx, n.now())
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"requested_by": payload.RequestedBy, "swept": swept}).Info("on-demand expiry sweep finished")
	return nil
}
