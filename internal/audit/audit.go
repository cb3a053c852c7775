// Package audit writes the append-only log of confirmed redemptions,
// grouped into fixed time buckets.
package audit

import (
	"context"
	"fmt"
	"time"

	"household-voucher-go/internal/metrics"
	"household-voucher-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink persists audit records. Appending a record whose code is already
// present must be a no-op.
type Sink interface {
	AppendAudit(ctx context.Context, record models.AuditRecord) error
	AuditBucket(ctx context.Context, bucket time.Time) ([]models.AuditRecord, error)
}

type Logger struct {
	sink       Sink
	bucketSize time.Duration
	attempts   int
	backoff    time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewLogger(sink Sink, cfg models.AuditConfig, m *metrics.Metrics) *Logger {
	bucketSize := cfg.BucketSize
	if bucketSize <= 0 {
		bucketSize = time.Hour
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Logger{
		sink:       sink,
		bucketSize: bucketSize,
		attempts:   attempts,
		backoff:    cfg.RetryBackoff,
		metrics:    m,
		now:        time.Now,
	}
}

// BucketOf returns the start of the bucket containing t.
func (l *Logger) BucketOf(t time.Time) time.Time {
	return t.UTC().Truncate(l.bucketSize)
}

// Append stamps the record's bucket and writes it, retrying with a linear
// backoff. The last error is returned once every attempt has failed.
func (l *Logger) Append(ctx context.Context, record models.AuditRecord) error {
	if record.Id == "" {
		record.Id = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now()
	}
	record.Timestamp = record.Timestamp.UTC()
	record.Bucket = l.BucketOf(record.Timestamp)

	err := l.write(ctx, record)
	if err == nil {
		zap.L().Debug("Audit record appended",
			zap.String("code", record.Code),
			zap.Time("bucket", record.Bucket))
		return nil
	}

	l.metrics.AuditFailed()
	zap.L().Error("Audit record dropped after retries",
		zap.String("code", record.Code),
		zap.String("merchant_id", record.MerchantId),
		zap.String("household_id", record.HouseholdId),
		zap.String("total", record.Total.String()),
		zap.Error(err))
	return fmt.Errorf("failed to append audit record for %s: %w", record.Code, err)
}

func (l *Logger) write(ctx context.Context, record models.AuditRecord) error {
	var err error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		if err = l.sink.AppendAudit(ctx, record); err == nil {
			return nil
		}
		zap.L().Warn("Audit append failed",
			zap.String("code", record.Code),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", l.attempts),
			zap.Error(err))

		if attempt == l.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff * time.Duration(attempt)):
		}
	}
	return err
}

// Bucket lists the records of the bucket containing t.
func (l *Logger) Bucket(ctx context.Context, t time.Time) ([]models.AuditRecord, error) {
	records, err := l.sink.AuditBucket(ctx, l.BucketOf(t))
	if err != nil {
		return nil, fmt.Errorf("failed to read audit bucket: %w", err)
	}
	return records, nil
}
