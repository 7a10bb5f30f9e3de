// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config reads the acall-rw settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"code.hybscloud.com/acall/internal/rw"
	"github.com/sirupsen/logrus"
)

// Report formats.
const (
	ReportJSON = "json"
	ReportText = "text"
)

// Config is the read-after-write run configuration.
type Config struct {
	Path      string        // ACALL_PATH; empty selects an in-memory file
	SQEntries uint32        // ACALL_SQ_ENTRIES
	CQEntries uint32        // ACALL_CQ_ENTRIES; 0 lets the engine choose
	Window    uint32        // ACALL_WINDOW
	BlockSize int           // ACALL_BLOCK_SIZE
	TotalSize int           // ACALL_TOTAL_SIZE
	Workers   int           // ACALL_WORKERS
	Seed      uint64        // ACALL_SEED
	Timeout   time.Duration // ACALL_TIMEOUT; 0 means none
	LogLevel  logrus.Level  // ACALL_LOG_LEVEL
	Report    string        // ACALL_REPORT: json or text
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		SQEntries: 4,
		CQEntries: 8,
		Window:    4,
		BlockSize: rw.DefaultBlockSize,
		TotalSize: rw.DefaultTotalSize,
		Workers:   1,
		Seed:      rw.DefaultSeed,
		LogLevel:  logrus.InfoLevel,
		Report:    ReportJSON,
	}
}

// FromEnv overlays ACALL_* variables on Default.
func FromEnv() (*Config, error) {
	return parse(os.Getenv)
}

func parse(getenv func(string) string) (*Config, error) {
	cfg := Default()
	cfg.Path = getenv("ACALL_PATH")

	var err error
	if cfg.SQEntries, err = u32(getenv, "ACALL_SQ_ENTRIES", cfg.SQEntries); err != nil {
		return nil, err
	}
	if cfg.CQEntries, err = u32(getenv, "ACALL_CQ_ENTRIES", cfg.CQEntries); err != nil {
		return nil, err
	}
	if cfg.Window, err = u32(getenv, "ACALL_WINDOW", cfg.Window); err != nil {
		return nil, err
	}
	if cfg.BlockSize, err = size(getenv, "ACALL_BLOCK_SIZE", cfg.BlockSize); err != nil {
		return nil, err
	}
	if cfg.TotalSize, err = size(getenv, "ACALL_TOTAL_SIZE", cfg.TotalSize); err != nil {
		return nil, err
	}
	if cfg.Workers, err = size(getenv, "ACALL_WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if v := getenv("ACALL_SEED"); v != "" {
		if cfg.Seed, err = strconv.ParseUint(v, 0, 64); err != nil {
			return nil, fmt.Errorf("ACALL_SEED: %w", err)
		}
	}
	if v := getenv("ACALL_TIMEOUT"); v != "" {
		if cfg.Timeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("ACALL_TIMEOUT: %w", err)
		}
	}
	if v := getenv("ACALL_LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = logrus.ParseLevel(v); err != nil {
			return nil, fmt.Errorf("ACALL_LOG_LEVEL: %w", err)
		}
	}
	if v := getenv("ACALL_REPORT"); v != "" {
		if v != ReportJSON && v != ReportText {
			return nil, fmt.Errorf("ACALL_REPORT must be %q or %q, got %q", ReportJSON, ReportText, v)
		}
		cfg.Report = v
	}

	if cfg.TotalSize%cfg.BlockSize != 0 {
		return nil, fmt.Errorf("ACALL_TOTAL_SIZE %d is not a multiple of ACALL_BLOCK_SIZE %d", cfg.TotalSize, cfg.BlockSize)
	}
	return &cfg, nil
}

func u32(getenv func(string) string, key string, def uint32) (uint32, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return uint32(n), nil
}

func size(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
