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
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/internal/notification"
	"github.com/nordlion/nordlion/internal/request"
	"github.com/nordlion/nordlion/model"
)

// NewWebhook is the body posted to the configured webhook URL.
type NewWebhook struct {
	Event   string      `json:"event"` // The event type that triggered the webhook.
	Payload interface{} `json:"data"`  // The data associated with the event.
}

const (
	EventIdentityCreated      = "identity.created"
	EventKYCSubmitted         = "kyc.submitted"
	EventKYCComplianceUpdated = "kyc.compliance_updated"
)

// KYCEvent is the body of every kyc.* webhook. It carries identifiers and
// review state only; document numbers, images and personal details stay in
// the service and receivers fetch the record when they need them.
type KYCEvent struct {
	KYCID             string                  `json:"kyc_id"`
	IdentityID        string                  `json:"identity_id"`
	Status            model.KYCStatus         `json:"status"`
	VerificationLevel model.VerificationLevel `json:"verification_level"`
	RiskLevel         model.RiskLevel         `json:"risk_level"`
	ReviewedBy        string                  `json:"reviewed_by,omitempty"`
	ExpiresAt         *time.Time              `json:"expires_at,omitempty"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func kycEvent(record *model.KYCRecord) KYCEvent {
	return KYCEvent{
		KYCID:             record.KYCID,
		IdentityID:        record.IdentityID,
		Status:            record.Status,
		VerificationLevel: record.VerificationLevel,
		RiskLevel:         record.RiskLevel,
		ReviewedBy:        record.ReviewedBy,
		ExpiresAt:         record.ExpiresAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

// IdentityEvent is the body of identity.* webhooks.
type IdentityEvent struct {
	IdentityID string    `json:"identity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// eventFromStatus names the webhook fired when a record enters status.
func eventFromStatus(status model.KYCStatus) string {
	switch status {
	case model.KYCStatusPending:
		return EventKYCSubmitted
	case model.KYCStatusUnderReview:
		return "kyc.under_review"
	case model.KYCStatusApproved:
		return "kyc.approved"
	case model.KYCStatusRejected:
		return "kyc.rejected"
	case model.KYCStatusExpired:
		return "kyc.expired"
	default:
		return "kyc.unknown"
	}
}

// sendWebhook enqueues in the background; failures are reported, never returned.
func (n *NordLion) sendWebhook(event string, payload interface{}) {
	go func() {
		err := n.queue.SendWebhook(context.Background(), NewWebhook{Event: event, Payload: payload})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}

func processHTTP(conf *config.Configuration, data NewWebhook) error {
	payload, err := request.ToJsonReq(data)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, conf.Notification.Webhook.Url, payload)
	if err != nil {
		return err
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	// receivers answer with arbitrary bodies; only the status matters
	if _, err := request.Call(req, nil); err != nil {
		return err
	}
	logrus.Infof("Webhook notification %s sent successfully", data.Event)
	return nil
}

// ProcessWebhook is the asynq handler delivering queued webhooks. A failed
// delivery is returned so asynq retries it.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("Error unmarshaling task payload: %v", err)
		return err
	}
	logrus.Infof("Processing webhook: %s", payload.Event)
	return processHTTP(conf, payload)
}
