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

package common

import (
	"context"
	"fmt"
	"strings"

	"household-voucher-go/internal/models"
	"household-voucher-go/internal/store"

	"go.uber.org/zap"
)

// HouseholdInfo represents simplified household information for command-line utilities
type HouseholdInfo struct {
	Id    string
	Name  string
	Email string
}

// HouseholdLister is the slice of the voucher service the CLIs use to find households.
type HouseholdLister interface {
	Households() []models.Household
}

// FindHouseholds returns the household with the given email, or every
// household when emailFilter is empty.
func FindHouseholds(_ context.Context, lister HouseholdLister, emailFilter string) ([]HouseholdInfo, error) {
	var households []HouseholdInfo

	for _, h := range lister.Households() {
		if emailFilter != "" && !strings.EqualFold(h.Email, emailFilter) {
			continue
		}
		households = append(households, HouseholdInfo{Id: h.Id, Name: h.Name, Email: h.Email})
	}

	if emailFilter != "" && len(households) == 0 {
		return nil, fmt.Errorf("household not found: %w: %s", store.ErrUnknownHousehold, emailFilter)
	}

	zap.L().Info("Retrieved households", zap.Int("count", len(households)))
	return households, nil
}
