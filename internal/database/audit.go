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

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"household-voucher-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AppendAudit writes one audit record into its bucket. Records are unique per
// redeem code, so re-appending the same confirmation is a no-op.
func (s *Service) AppendAudit(ctx context.Context, record models.AuditRecord) error {
	voucherIds, err := json.Marshal(record.VoucherIds)
	if err != nil {
		return fmt.Errorf("failed to encode voucher ids: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryInsertAuditRecord,
		record.Id, record.Bucket.UTC(), record.Timestamp.UTC(), record.Code,
		record.MerchantId, record.HouseholdId, string(voucherIds), record.Total.String())
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		zap.L().Info("Audit record already present for code, skipping",
			zap.String("code", record.Code))
	}
	return nil
}

// AuditBucket returns the records stored in the bucket that starts at bucket.
func (s *Service) AuditBucket(ctx context.Context, bucket time.Time) ([]models.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAuditBucket, bucket.UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to query audit bucket: %w", err)
	}
	defer closeRows(rows)

	var records []models.AuditRecord
	for rows.Next() {
		var r models.AuditRecord
		var voucherIds, totalStr string
		if err := rows.Scan(&r.Id, &r.Bucket, &r.Timestamp, &r.Code, &r.MerchantId, &r.HouseholdId,
			&voucherIds, &totalStr); err != nil {
			return nil, fmt.Errorf("unable to scan audit row: %w", err)
		}
		if err := json.Unmarshal([]byte(voucherIds), &r.VoucherIds); err != nil {
			return nil, fmt.Errorf("failed to decode voucher ids for %s: %w", r.Code, err)
		}
		if r.Total, err = decimal.NewFromString(totalStr); err != nil {
			return nil, fmt.Errorf("failed to parse total '%s': %w", totalStr, err)
		}
		r.Bucket = r.Bucket.UTC()
		r.Timestamp = r.Timestamp.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return records, nil
}
