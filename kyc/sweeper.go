package kyc

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpirySweeper persists the expired status of approved records past their expiry.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs an ExpirySweeper on a fixed interval until stopped.
type Sweeper struct {
	target   ExpirySweeper
	interval time.Duration
	stopCh   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func NewSweeper(target ExpirySweeper, interval time.Duration) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logrus.Infof("KYC expiry sweeper started with interval: %v", s.interval)

		s.RunOnce(context.Background())

		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stopCh:
				logrus.Info("KYC expiry sweeper stopping...")
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	logrus.Info("KYC expiry sweeper stopped")
}

// RunOnce performs a single sweep and returns the number of records expired.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.target.SweepExpired(ctx, time.Now())
	if err != nil {
		logrus.Errorf("Sweeper: failed to sweep expired records: %v", err)
		return n
	}
	if n > 0 {
		logrus.Infof("Sweeper: marked %d records expired", n)
	} else {
		logrus.Debug("Sweeper: no expired records")
	}
	return n
}
