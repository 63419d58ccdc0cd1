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
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/model"
)

func TestEventFromStatus(t *testing.T) {
	assert.Equal(t, "kyc.submitted", eventFromStatus(model.KYCStatusPending))
	assert.Equal(t, "kyc.under_review", eventFromStatus(model.KYCStatusUnderReview))
	assert.Equal(t, "kyc.approved", eventFromStatus(model.KYCStatusApproved))
	assert.Equal(t, "kyc.rejected", eventFromStatus(model.KYCStatusRejected))
	assert.Equal(t, "kyc.expired", eventFromStatus(model.KYCStatusExpired))
}

func TestProcessWebhook(t *testing.T) {
	var received NewWebhook
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Signature")
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte("OK"))
	}))
	defer server.Close()

	conf := testConfig("localhost:6379")
	conf.Notification.Webhook = config.WebhookConfig{Url: server.URL, Headers: map[string]string{"X-Signature": "abc"}}
	config.MockConfig(conf)

	payload, err := json.Marshal(NewWebhook{Event: "kyc.approved", Payload: map[string]string{"kyc_id": "kyc_1"}})
	require.NoError(t, err)

	err = ProcessWebhook(context.Background(), asynq.NewTask(conf.Queue.WebhookQueue, payload))
	require.NoError(t, err)
	assert.Equal(t, "kyc.approved", received.Event)
	assert.Equal(t, "abc", header)
}

func TestProcessWebhook_ReceiverErrorIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	conf := testConfig("localhost:6379")
	conf.Notification.Webhook.Url = server.URL
	config.MockConfig(conf)

	payload, _ := json.Marshal(NewWebhook{Event: "kyc.rejected"})
	err := ProcessWebhook(context.Background(), asynq.NewTask(conf.Queue.WebhookQueue, payload))
	assert.Error(t, err)
}

func TestKYCEvent_CarriesNoPersonalData(t *testing.T) {
	rec := storedRecord(model.KYCStatusApproved, model.VerificationLevelIntermediate, at(testNow.AddDate(1, 0, 0)))
	rec.IDBackImage = "s3://kyc/back.jpg"

	body, err := json.Marshal(NewWebhook{Event: EventKYCSubmitted, Payload: kycEvent(rec)})
	require.NoError(t, err)

	for _, secret := range []string{rec.IDNumber, rec.FullName, rec.IDFrontImage, rec.IDBackImage, rec.SelfieImage, rec.ProofOfAddress, rec.IPAddress, rec.Address, "1985-12-10"} {
		assert.NotContains(t, string(body), secret)
	}

	var decoded struct {
		Data KYCEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "kyc_1", decoded.Data.KYCID)
	assert.Equal(t, "idt_1", decoded.Data.IdentityID)
	assert.Equal(t, model.KYCStatusApproved, decoded.Data.Status)
	assert.Equal(t, model.VerificationLevelIntermediate, decoded.Data.VerificationLevel)
}

func TestQueuedKYCWebhook_OmitsDocumentNumber(t *testing.T) {
	queue, mr := newTestQueue(t, "http://receiver.invalid/hooks")

	require.NoError(t, queue.SendWebhook(context.Background(), NewWebhook{Event: EventKYCSubmitted, Payload: kycEvent(storedRecord(model.KYCStatusPending, model.VerificationLevelBasic, nil))}))

	pending, err := mr.List("asynq:{kyc_webhook_queue}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	msg := mr.HGet("asynq:{kyc_webhook_queue}:t:"+pending[0], "msg")
	assert.Contains(t, msg, "kyc_1")
	assert.NotContains(t, msg, "P1234567")
}
