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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/database/mocks"
	"github.com/nordlion/nordlion/internal/cache"
	"github.com/nordlion/nordlion/internal/metrics"
	"github.com/nordlion/nordlion/kyc"
	"github.com/nordlion/nordlion/kyc/adapters"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type testHarness struct {
	n    *NordLion
	ds   *mocks.MockDataSource
	mr   *miniredis.Miniredis
	conf *config.Configuration
}

func testConfig(redisAddr string) *config.Configuration {
	return &config.Configuration{
		ProjectName: "NordLion KYC",
		Redis:       config.RedisConfig{Dns: redisAddr},
		Queue:       config.QueueConfig{WebhookQueue: "kyc_webhook_queue", SweepQueue: "kyc_expiry_sweep"},
		KYC: config.KYCConfig{
			Currency:         "EUR",
			SweepIntervalSec: 3600,
			CacheTTLSec:      300,
		},
	}
}

// newTestNordLion wires a NordLion against miniredis and a mocked datasource.
func newTestNordLion(t *testing.T) *testHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	conf := testConfig(mr.Addr())
	config.MockConfig(conf)

	queue, err := NewQueue(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close() })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.New(prometheus.NewRegistry())
	engine := kyc.NewEngine(m)
	engine.RegisterProvider(adapters.NewMockProvider())

	ds := new(mocks.MockDataSource)
	n := &NordLion{
		queue:      queue,
		redis:      client,
		cache:      cache.NewCache(client),
		datasource: ds,
		screening:  engine,
		metrics:    m,
		config:     conf,
		now:        func() time.Time { return testNow },
	}
	return &testHarness{n: n, ds: ds, mr: mr, conf: conf}
}

// shortLockWait makes writers give up quickly on a record lock held elsewhere.
func shortLockWait(t *testing.T) {
	t.Helper()
	prev := reviewLockWait
	reviewLockWait = 50 * time.Millisecond
	t.Cleanup(func() { reviewLockWait = prev })
}

func mustGet(t *testing.T, h *testHarness, key string) string {
	t.Helper()
	v, err := h.mr.Get(key)
	require.NoError(t, err)
	return v
}
