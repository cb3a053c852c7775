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
	"log"
	"strings"

	"household-voucher-go/internal/api"
	"household-voucher-go/internal/database"
	"household-voucher-go/internal/metrics"
	"household-voucher-go/internal/models"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// A missing .env is fine; variables may come from the shell or the container.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService      *database.Service
	VoucherService *api.VoucherService
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// NewMetricsRegistry returns a registry carrying the process and Go runtime
// collectors alongside the voucher metrics.
func NewMetricsRegistry() (*prometheus.Registry, *metrics.Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, metrics.New(registry)
}

// InitializeServices opens the database, loads the tranche catalog and
// brings the voucher service up, recovering any interrupted operation.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Loading tranche catalog", zap.String("file", cfg.Redemption.TranchesFile))
	tranches, err := LoadTranches(cfg.Redemption.TranchesFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	registry, m := NewMetricsRegistry()

	voucherService, err := api.NewVoucherService(ctx, dbService, api.Options{
		Tranches:   tranches,
		Redemption: cfg.Redemption,
		Audit:      cfg.Audit,
		Metrics:    m,
	})
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to start voucher service: %w", err)
	}

	return &Services{
		DbService:      dbService,
		VoucherService: voucherService,
		Metrics:        m,
		Registry:       registry,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without
// loading state into memory. Useful for read-only reports.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
