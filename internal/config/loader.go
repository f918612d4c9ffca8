// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Environment keys.
const (
	EnvRegion         = "PLUTOEPG_REGION"
	EnvLang           = "PLUTOEPG_LANG"
	EnvTimeZone       = "PLUTOEPG_TIMEZONE"
	EnvRegionIP       = "PLUTOEPG_REGION_IP"
	EnvLegacyRegionIP = "IT_REGION"
	EnvProxy          = "PLUTOEPG_PROXY"
	EnvOutput         = "PLUTOEPG_OUTPUT"
	EnvChannelList    = "PLUTOEPG_CHANNEL_LIST"
	EnvMetricsFile    = "PLUTOEPG_METRICS_FILE"
	EnvHTTPTimeout    = "PLUTOEPG_HTTP_TIMEOUT"
	EnvRateLimit      = "PLUTOEPG_RATE_LIMIT"
	EnvBatchSize      = "PLUTOEPG_BATCH_SIZE"
	EnvHorizonHours   = "PLUTOEPG_HORIZON_HOURS"
	EnvWindowHours    = "PLUTOEPG_WINDOW_HOURS"
	EnvRetries        = "PLUTOEPG_RETRIES"
	EnvRetryDelay     = "PLUTOEPG_RETRY_DELAY"
	EnvStrictCoverage = "PLUTOEPG_STRICT_COVERAGE"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "PLUTOEPG_LOG_FORMAT"
	EnvOTelEnabled    = "PLUTOEPG_OTEL_ENABLED"
	EnvOTelExporter   = "PLUTOEPG_OTEL_EXPORTER"
	EnvOTelEndpoint   = "PLUTOEPG_OTEL_ENDPOINT"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	envFile    string
	version    string
}

// NewLoader creates a new configuration loader. configPath and envFile are
// optional; a missing envFile is not an error.
func NewLoader(configPath, envFile, version string) *Loader {
	return &Loader{
		configPath: strings.TrimSpace(configPath),
		envFile:    strings.TrimSpace(envFile),
		version:    version,
	}
}

// Load resolves the configuration and validates it.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.envFile != "" {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing: unknown fields
// are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv overrides cfg with environment variables.
func mergeEnv(cfg *AppConfig) {
	cfg.Region.Code = ParseString(EnvRegion, cfg.Region.Code)
	cfg.Region.Lang = ParseString(EnvLang, cfg.Region.Lang)
	cfg.Region.TimeZone = ParseString(EnvTimeZone, cfg.Region.TimeZone)
	cfg.Region.ForwardedFor = ParseStringWithAlias(EnvRegionIP, EnvLegacyRegionIP, cfg.Region.ForwardedFor)
	cfg.Proxy = ParseString(EnvProxy, cfg.Proxy)

	cfg.Output.Path = ParseString(EnvOutput, cfg.Output.Path)
	cfg.Output.ChannelList = ParseString(EnvChannelList, cfg.Output.ChannelList)
	cfg.Output.MetricsFile = ParseString(EnvMetricsFile, cfg.Output.MetricsFile)

	cfg.Fetch.Timeout = ParseDuration(EnvHTTPTimeout, cfg.Fetch.Timeout)
	cfg.Fetch.RateLimit = ParseFloat(EnvRateLimit, cfg.Fetch.RateLimit)
	cfg.Fetch.BatchSize = ParseInt(EnvBatchSize, cfg.Fetch.BatchSize)
	cfg.Fetch.HorizonHours = ParseInt(EnvHorizonHours, cfg.Fetch.HorizonHours)
	cfg.Fetch.WindowHours = ParseInt(EnvWindowHours, cfg.Fetch.WindowHours)
	cfg.Fetch.Retries = ParseInt(EnvRetries, cfg.Fetch.Retries)
	cfg.Fetch.RetryDelay = ParseDuration(EnvRetryDelay, cfg.Fetch.RetryDelay)
	cfg.Fetch.StrictCoverage = ParseBool(EnvStrictCoverage, cfg.Fetch.StrictCoverage)

	cfg.Log.Level = ParseString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = ParseString(EnvLogFormat, cfg.Log.Format)

	cfg.Telemetry.Enabled = ParseBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvOTelExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
}
