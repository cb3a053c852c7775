package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"sort"
	"strconv"
	"time"

	"household-voucher-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settle rolls the bucket containing t up into per-merchant payouts. The
// audit log is the only input, so settling the same bucket twice yields the
// same result.
func (l *Logger) Settle(ctx context.Context, t time.Time) (*models.Settlement, error) {
	records, err := l.Bucket(ctx, t)
	if err != nil {
		return nil, err
	}

	settlement := &models.Settlement{
		Bucket:  l.BucketOf(t),
		Records: records,
		Total:   decimal.Zero,
	}
	byMerchant := make(map[string]*models.MerchantSettlement)
	for _, r := range records {
		m, ok := byMerchant[r.MerchantId]
		if !ok {
			m = &models.MerchantSettlement{MerchantId: r.MerchantId, Total: decimal.Zero}
			byMerchant[r.MerchantId] = m
		}
		m.Redemptions++
		m.Vouchers += len(r.VoucherIds)
		m.Total = m.Total.Add(r.Total)

		settlement.Redemptions++
		settlement.Vouchers += len(r.VoucherIds)
		settlement.Total = settlement.Total.Add(r.Total)
	}

	for _, m := range byMerchant {
		settlement.Merchants = append(settlement.Merchants, *m)
	}
	sort.Slice(settlement.Merchants, func(i, j int) bool {
		return settlement.Merchants[i].MerchantId < settlement.Merchants[j].MerchantId
	})

	zap.L().Info("Audit bucket settled",
		zap.Time("bucket", settlement.Bucket),
		zap.Int("redemptions", settlement.Redemptions),
		zap.Int("merchants", len(settlement.Merchants)),
		zap.String("total", settlement.Total.String()))
	return settlement, nil
}

// SettlementCSV renders one row per redeemed voucher and returns the payload
// with a SHA-256 checksum of it.
func SettlementCSV(s *models.Settlement) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	header := []string{"code", "household_id", "merchant_id", "confirmed_at", "voucher_id", "line", "redemption_total"}
	if err := writer.Write(header); err != nil {
		return nil, "", err
	}
	for _, r := range s.Records {
		for i, id := range r.VoucherIds {
			line := strconv.Itoa(i + 1)
			if i == len(r.VoucherIds)-1 {
				line = "final"
			}
			row := []string{
				r.Code,
				r.HouseholdId,
				r.MerchantId,
				r.Timestamp.UTC().Format(time.RFC3339),
				id,
				line,
				r.Total.StringFixed(2),
			}
			if err := writer.Write(row); err != nil {
				return nil, "", err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

// SettlementFileName names the export of a bucket, e.g. Settlement2026101709.csv.
func SettlementFileName(bucket time.Time) string {
	return "Settlement" + bucket.UTC().Format("2006010215") + ".csv"
}
