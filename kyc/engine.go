package kyc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordlion/nordlion/internal/metrics"
	"github.com/nordlion/nordlion/model"
)

// Engine is the registry of screening providers.
type Engine struct {
	mu        sync.RWMutex
	providers map[string]ScreeningProvider
	metrics   *metrics.Metrics
}

func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{
		providers: make(map[string]ScreeningProvider),
		metrics:   m,
	}
}

func (e *Engine) RegisterProvider(provider ScreeningProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[provider.Name()] = provider
}

// Providers returns the registered provider names in order.
func (e *Engine) Providers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.providers))
	for name := range e.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Screen runs the named provider against record. It does not modify the record.
func (e *Engine) Screen(ctx context.Context, providerName string, record *model.KYCRecord) (*ScreeningResult, error) {
	e.mu.RLock()
	provider, ok := e.providers[providerName]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	start := time.Now()
	result, err := provider.Screen(ctx, record)
	e.metrics.ObserveScreening(providerName, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("screening %s with %s: %w", record.KYCID, providerName, err)
	}

	logrus.WithFields(logrus.Fields{
		"kyc_id":       record.KYCID,
		"provider":     providerName,
		"provider_ref": result.ProviderRef,
	}).Info("screening completed")
	return result, nil
}
