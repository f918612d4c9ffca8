// SPDX-License-Identifier: MIT

// Package config loads the guide builder configuration from defaults, an
// optional YAML file and the environment.
package config

import (
	"time"

	"github.com/ManuGH/plutoepg/internal/pluto"
)

// AppConfig is the fully resolved configuration of one run.
type AppConfig struct {
	Region    RegionConfig    `yaml:"region"`
	Proxy     string          `yaml:"proxy"`
	Output    OutputConfig    `yaml:"output"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Version is set from the binary, not from configuration sources.
	Version string `yaml:"-"`
}

// RegionConfig selects the catalog locale.
type RegionConfig struct {
	Code         string `yaml:"code"`
	Lang         string `yaml:"lang"`
	TimeZone     string `yaml:"timezone"`
	ForwardedFor string `yaml:"forwardedFor"`
}

// OutputConfig names the files a run produces.
type OutputConfig struct {
	Path        string `yaml:"path"`
	ChannelList string `yaml:"channelList"`
	MetricsFile string `yaml:"metricsFile"`
}

// FetchConfig shapes the timeline horizon and the upstream call pattern.
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	RateLimit      float64       `yaml:"rateLimit"`
	BatchSize      int           `yaml:"batchSize"`
	HorizonHours   int           `yaml:"horizonHours"`
	WindowHours    int           `yaml:"windowHours"`
	Retries        int           `yaml:"retries"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	StrictCoverage bool          `yaml:"strictCoverage"`
}

// EndpointsConfig overrides upstream URLs.
type EndpointsConfig struct {
	Site      string `yaml:"site"`
	Boot      string `yaml:"boot"`
	Channels  string `yaml:"channels"`
	Timelines string `yaml:"timelines"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Region: RegionConfig{
			Code:     "IT",
			Lang:     "it",
			TimeZone: "Europe/Rome",
		},
		Output: OutputConfig{
			Path: "epg_pluto_it.xml",
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			BatchSize:    30,
			HorizonHours: 48,
			WindowHours:  4,
			Retries:      2,
			RetryDelay:   time.Second,
		},
		Endpoints: EndpointsConfig{
			Site:      pluto.DefaultSiteURL,
			Boot:      pluto.DefaultBootURL,
			Channels:  pluto.DefaultChannelsURL,
			Timelines: pluto.DefaultTimelineURL,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// PlutoConfig maps the configuration onto the upstream client settings.
func (c AppConfig) PlutoConfig() pluto.Config {
	return pluto.Config{
		SiteURL:      c.Endpoints.Site,
		BootURL:      c.Endpoints.Boot,
		ChannelsURL:  c.Endpoints.Channels,
		TimelineURL:  c.Endpoints.Timelines,
		Region:       c.Region.Code,
		Lang:         c.Region.Lang,
		TimeZone:     c.Region.TimeZone,
		ForwardedFor: c.Region.ForwardedFor,
		Proxy:        c.Proxy,
		Timeout:      c.Fetch.Timeout,
		RateLimit:    c.Fetch.RateLimit,
	}
}
