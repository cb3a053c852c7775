/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package redemption

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultSweepInterval = time.Minute

// Sweeper periodically expires stale redeem codes so their vouchers are
// released even if nobody presents the code again.
type Sweeper struct {
	coordinator *Coordinator
	interval    time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewSweeper(coordinator *Coordinator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		coordinator: coordinator,
		interval:    interval,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start runs the sweep loop in the background.
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run sweeps on every tick until ctx is done or Stop is called.
func (s *Sweeper) Run(ctx context.Context) error {
	defer close(s.doneChan)

	zap.L().Info("Redemption sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			zap.L().Info("Redemption sweeper stopped")
			return nil
		case <-ctx.Done():
			zap.L().Info("Redemption sweeper stopped", zap.Error(ctx.Err()))
			return nil
		}
	}
}

// Stop ends the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.coordinator.ExpireStale(ctx)
	if err != nil {
		zap.L().Error("Failed to expire stale redeem codes", zap.Error(err))
	}
	if expired > 0 {
		zap.L().Info("Expired stale redeem codes",
			zap.Int("expired", expired),
			zap.Int("pending", s.coordinator.Pending()))
	}
}
