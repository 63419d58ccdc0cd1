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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT     = "5005"
	DEFAULT_CURRENCY = "EUR"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"NORDLION_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"NORDLION_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"NORDLION_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"NORDLION_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"NORDLION_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"NORDLION_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"NORDLION_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"NORDLION_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"NORDLION_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	WebhookQueue string `json:"webhook_queue" envconfig:"NORDLION_QUEUE_WEBHOOK"`
	SweepQueue   string `json:"sweep_queue" envconfig:"NORDLION_QUEUE_SWEEP"`
}

type KYCConfig struct {
	// Currency labels the unit of the tier ceilings. Amounts are major units.
	Currency string `json:"currency" envconfig:"NORDLION_KYC_CURRENCY"`
	// ProvidersFile is a YAML file describing screening providers.
	ProvidersFile string `json:"providers_file" envconfig:"NORDLION_KYC_PROVIDERS_FILE"`
	// PersistExpiry enables the sweep that writes status "expired" for
	// approved records past ExpiresAt.
	PersistExpiry    bool `json:"persist_expiry" envconfig:"NORDLION_KYC_PERSIST_EXPIRY"`
	SweepIntervalSec int  `json:"sweep_interval_sec" envconfig:"NORDLION_KYC_SWEEP_INTERVAL_SEC"`
	CacheTTLSec      int  `json:"cache_ttl_sec" envconfig:"NORDLION_KYC_CACHE_TTL_SEC"`
	// MockScreening registers the local mock screening provider.
	MockScreening bool `json:"mock_screening" envconfig:"NORDLION_KYC_MOCK_SCREENING"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"NORDLION_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"NORDLION_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"NORDLION_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"NORDLION_SLACK_WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"NORDLION_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"NORDLION_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	KYC          KYCConfig        `json:"kyc"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("nordlion", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called nordlion.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "NordLion KYC"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setQueueDefaults()
	cnf.setKYCDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) setQueueDefaults() {
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "kyc_webhook_queue"
	}
	if cnf.Queue.SweepQueue == "" {
		cnf.Queue.SweepQueue = "kyc_expiry_sweep"
	}
}

func (cnf *Configuration) setKYCDefaults() {
	cnf.KYC.Currency = strings.ToUpper(strings.TrimSpace(cnf.KYC.Currency))
	if cnf.KYC.Currency == "" {
		cnf.KYC.Currency = DEFAULT_CURRENCY
	}
	if cnf.KYC.SweepIntervalSec <= 0 {
		cnf.KYC.SweepIntervalSec = 3600
	}
	if cnf.KYC.CacheTTLSec <= 0 {
		cnf.KYC.CacheTTLSec = 300
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
