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
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/nordlion/nordlion/config"
	redis_db "github.com/nordlion/nordlion/internal/redis-db"
)

// Queue holds the asynq client used for webhooks and on-demand expiry sweeps.
type Queue struct {
	Client       *asynq.Client
	webhookQueue string
	sweepQueue   string
	webhookURL   string
}

// RedisClientOpt converts the configured Redis DNS into asynq connection options.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}, nil
}

func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:       asynq.NewClient(queueOptions),
		webhookQueue: conf.Queue.WebhookQueue,
		sweepQueue:   conf.Queue.SweepQueue,
		webhookURL:   conf.Notification.Webhook.Url,
	}, nil
}

// SendWebhook enqueues an outbound webhook. It is a no-op when no webhook URL is configured.
func (q *Queue) SendWebhook(ctx context.Context, webhook NewWebhook) error {
	if q.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(webhook)
	if err != nil {
		return err
	}
	task := asynq.NewTask(q.webhookQueue, payload, asynq.Queue(q.webhookQueue), asynq.MaxRetry(5))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		logrus.WithError(err).WithField("event", webhook.Event).Error("failed to enqueue webhook")
		return err
	}
	logrus.Debugf(" [*] Successfully enqueued webhook %s as %s", webhook.Event, info.ID)
	return nil
}

// EnqueueExpirySweep asks the workers to run one expiry sweep. Requests within
// the same minute collapse into one task.
func (q *Queue) EnqueueExpirySweep(ctx context.Context, requestedBy string) error {
	payload, err := json.Marshal(map[string]string{"requested_by": requestedBy})
	if err != nil {
		return err
	}
	task := asynq.NewTask(q.sweepQueue, payload, asynq.Queue(q.sweepQueue), asynq.Unique(time.Minute), asynq.MaxRetry(1))
	_, err = q.Client.EnqueueContext(ctx, task)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return err
	}
	return nil
}

func (q *Queue) Close() error {
	return q.Client.Close()
}
