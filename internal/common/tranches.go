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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"household-voucher-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type PlanItemConfig struct {
	Denomination string `yaml:"denomination"`
	Count        int    `yaml:"count"`
}

type TrancheConfig struct {
	Id       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	OpensAt  string           `yaml:"opens_at"`
	ClosesAt string           `yaml:"closes_at"`
	Plan     []PlanItemConfig `yaml:"plan"`
}

type TranchesConfig struct {
	Tranches []TrancheConfig `yaml:"tranches"`
}

// LoadTranches reads the tranche catalog. Relative paths resolve against the
// working directory.
func LoadTranches(tranchesFile string) ([]models.Tranche, error) {
	var tranchesPath string
	if filepath.IsAbs(tranchesFile) {
		tranchesPath = tranchesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tranchesPath = filepath.Join(wd, tranchesFile)
	}

	data, err := os.ReadFile(tranchesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tranchesFile, err)
	}
	return ParseTranches(data)
}

func ParseTranches(data []byte) ([]models.Tranche, error) {
	var config TranchesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse tranche catalog: %w", err)
	}

	tranches := make([]models.Tranche, 0, len(config.Tranches))
	for i, tc := range config.Tranches {
		if tc.Id == "" {
			return nil, fmt.Errorf("tranche at index %d missing id", i)
		}
		if len(tc.Plan) == 0 {
			return nil, fmt.Errorf("tranche %s has no plan", tc.Id)
		}

		var err error
		tranche := models.Tranche{Id: tc.Id, Name: tc.Name}
		if tranche.Name == "" {
			tranche.Name = tc.Id
		}
		if tranche.OpensAt, err = parseOptionalTime(tc.OpensAt); err != nil {
			return nil, fmt.Errorf("tranche %s: invalid opens_at: %w", tc.Id, err)
		}
		if tranche.ClosesAt, err = parseOptionalTime(tc.ClosesAt); err != nil {
			return nil, fmt.Errorf("tranche %s: invalid closes_at: %w", tc.Id, err)
		}
		if !tranche.OpensAt.IsZero() && !tranche.ClosesAt.IsZero() && !tranche.ClosesAt.After(tranche.OpensAt) {
			return nil, fmt.Errorf("tranche %s closes before it opens", tc.Id)
		}

		for j, item := range tc.Plan {
			denomination, err := decimal.NewFromString(item.Denomination)
			if err != nil {
				return nil, fmt.Errorf("tranche %s plan item %d: invalid denomination '%s': %w", tc.Id, j, item.Denomination, err)
			}
			tranche.Plan = append(tranche.Plan, models.PlanItem{Denomination: denomination, Count: item.Count})
		}
		tranches = append(tranches, tranche)
	}

	return tranches, nil
}

func parseOptionalTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
