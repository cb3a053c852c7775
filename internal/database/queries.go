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

const (
	// Household queries
	queryUpsertHousehold = `
		INSERT INTO households (id, name, email, phone, postal_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			postal_code = excluded.postal_code`

	queryInsertClaim = `
		INSERT OR IGNORE INTO household_claims (household_id, tranche_id, claimed_at)
		VALUES (?, ?, ?)`

	queryGetHouseholdById = `
		SELECT id, name, email, phone, postal_code, created_at
		FROM households
		WHERE id = ?`

	queryGetHouseholdByEmail = `
		SELECT id, name, email, phone, postal_code, created_at
		FROM households
		WHERE email = ?`

	queryGetHouseholds = `
		SELECT id, name, email, phone, postal_code, created_at
		FROM households
		ORDER BY created_at, id`

	queryGetClaimsByHousehold = `
		SELECT tranche_id, claimed_at
		FROM household_claims
		WHERE household_id = ?`

	queryGetAllClaims = `
		SELECT household_id, tranche_id, claimed_at
		FROM household_claims`

	// Merchant queries
	queryUpsertMerchant = `
		INSERT INTO merchants (id, business_name, registration_number, account_holder, bank_name, bank_code, branch_code, branch_name, account_number, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_name = excluded.business_name,
			registration_number = excluded.registration_number,
			account_holder = excluded.account_holder,
			bank_name = excluded.bank_name,
			bank_code = excluded.bank_code,
			branch_code = excluded.branch_code,
			branch_name = excluded.branch_name,
			account_number = excluded.account_number,
			status = excluded.status`

	queryGetMerchantById = `
		SELECT id, business_name, registration_number, account_holder, bank_name, bank_code, branch_code, branch_name, account_number, status, created_at
		FROM merchants
		WHERE id = ?`

	queryGetMerchants = `
		SELECT id, business_name, registration_number, account_holder, bank_name, bank_code, branch_code, branch_name, account_number, status, created_at
		FROM merchants
		ORDER BY created_at, id`

	// Voucher queries
	queryUpsertVoucher = `
		INSERT INTO vouchers (id, household_id, tranche_id, denomination, state, redemption_code, redeemed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			redemption_code = excluded.redemption_code,
			redeemed_at = excluded.redeemed_at
		WHERE vouchers.state = 'active'`

	queryGetVoucherById = `
		SELECT id, household_id, tranche_id, denomination, state, redemption_code, redeemed_at, created_at
		FROM vouchers
		WHERE id = ?`

	queryGetVouchers = `
		SELECT id, household_id, tranche_id, denomination, state, redemption_code, redeemed_at, created_at
		FROM vouchers
		ORDER BY household_id, created_at, id`

	// Pending redemption queries
	queryUpsertRedemption = `
		INSERT INTO pending_redemptions (code, household_id, voucher_ids, total, merchant_id, status, created_at, expires_at, verified_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			merchant_id = excluded.merchant_id,
			status = excluded.status,
			verified_at = excluded.verified_at,
			completed_at = excluded.completed_at
		WHERE pending_redemptions.status IN ('issued', 'verified')
		   OR pending_redemptions.status = excluded.status`

	queryGetRedemptionByCode = `
		SELECT code, household_id, voucher_ids, total, merchant_id, status, created_at, expires_at, verified_at, completed_at
		FROM pending_redemptions
		WHERE code = ?`

	queryGetRedemptions = `
		SELECT code, household_id, voucher_ids, total, merchant_id, status, created_at, expires_at, verified_at, completed_at
		FROM pending_redemptions
		ORDER BY created_at, code`

	// Audit queries
	queryInsertAuditRecord = `
		INSERT INTO audit_records (id, bucket, timestamp, code, merchant_id, household_id, voucher_ids, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO NOTHING`

	queryGetAuditBucket = `
		SELECT id, bucket, timestamp, code, merchant_id, household_id, voucher_ids, total
		FROM audit_records
		WHERE bucket = ?
		ORDER BY timestamp, id`
)
