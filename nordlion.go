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
	"embed"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/database"
	"github.com/nordlion/nordlion/internal/cache"
	"github.com/nordlion/nordlion/internal/metrics"
	redis_db "github.com/nordlion/nordlion/internal/redis-db"
	"github.com/nordlion/nordlion/kyc"
	"github.com/nordlion/nordlion/kyc/adapters"
)

// NordLion represents the KYC service: submission, review, compliance and
// transaction eligibility for client identities.
type NordLion struct {
	queue      *Queue
	redis      redis.UniversalClient
	cache      cache.Cache
	datasource database.IDataSource
	screening  *kyc.Engine
	metrics    *metrics.Metrics
	config     *config.Configuration
	now        func() time.Time
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewNordLion wires the service to its datasource, Redis, the webhook queue and
// the configured screening providers.
func NewNordLion(db database.IDataSource) (*NordLion, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	queue, err := NewQueue(configuration)
	if err != nil {
		return nil, err
	}

	m := metrics.Default()
	engine := kyc.NewEngine(m)
	if configuration.KYC.MockScreening {
		engine.RegisterProvider(adapters.NewMockProvider())
	}
	if configuration.KYC.ProvidersFile != "" {
		if err := engine.LoadProvidersFromConfig(configuration.KYC.ProvidersFile); err != nil {
			return nil, err
		}
	}
	logrus.Infof("screening providers: %v", engine.Providers())

	return &NordLion{
		queue:      queue,
		redis:      redisClient.Client(),
		cache:      cache.NewCache(redisClient.Client()),
		datasource: db,
		screening:  engine,
		metrics:    m,
		config:     configuration,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Screening exposes the provider registry.
func (n *NordLion) Screening() *kyc.Engine {
	return n.screening
}

// Close releases the queue connections.
func (n *NordLion) Close() error {
	return n.queue.Close()
}

// Currency labels the unit of tier ceilings and transaction amounts.
func (n *NordLion) Currency() string {
	return n.config.KYC.Currency
}
