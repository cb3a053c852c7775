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
	"fmt"
	"sort"

	"household-voucher-go/internal/models"

	"go.uber.org/zap"
)

// Recover replays confirmations that reached the store before their vouchers
// did, then expires codes whose deadline passed while the process was down.
// It must run after Restore and before the coordinator serves requests.
func (c *Coordinator) Recover(ctx context.Context) error {
	zap.L().Info("Starting redemption recovery")

	c.mu.RLock()
	var confirmed []models.PendingRedemption
	for _, r := range c.redemptions {
		if r.Status == models.RedemptionConfirmed {
			confirmed = append(confirmed, r.Clone())
		}
	}
	c.mu.RUnlock()
	sort.Slice(confirmed, func(i, j int) bool { return confirmed[i].CompletedAt.Before(confirmed[j].CompletedAt) })

	replayed := 0
	for _, r := range confirmed {
		pending := c.unfinished(r)
		if len(pending) == 0 {
			continue
		}

		zap.L().Warn("Replaying interrupted confirmation",
			zap.String("code", r.Code),
			zap.Strings("voucher_ids", pending))

		if err := c.finish(ctx, r); err != nil {
			return fmt.Errorf("failed to replay confirmation %s: %w", r.Code, err)
		}
		replayed++
	}

	expired, err := c.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to expire stale codes: %w", err)
	}

	c.publishGauges()

	zap.L().Info("Redemption recovery completed",
		zap.Int("replayed_confirmations", replayed),
		zap.Int("expired_codes", expired),
		zap.Int("pending", c.Pending()))
	return nil
}
