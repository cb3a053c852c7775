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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanItem mints Count vouchers of the given denomination
type PlanItem struct {
	Denomination decimal.Decimal
	Count        int
}

// Tranche is a catalog entry households can claim once
type Tranche struct {
	Id       string
	Name     string
	Plan     []PlanItem
	OpensAt  time.Time // zero means always open
	ClosesAt time.Time // zero means never closes
}

// OpenAt reports whether the tranche can be claimed at t.
func (t Tranche) OpenAt(at time.Time) bool {
	if !t.OpensAt.IsZero() && at.Before(t.OpensAt) {
		return false
	}
	if !t.ClosesAt.IsZero() && !at.Before(t.ClosesAt) {
		return false
	}
	return true
}

// Total is the face value of one claim of the tranche.
func (t Tranche) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Plan {
		total = total.Add(item.Denomination.Mul(decimal.NewFromInt(int64(item.Count))))
	}
	return total
}
