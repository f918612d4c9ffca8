// SPDX-License-Identifier: MIT

package config

import (
	"strings"

	"github.com/ManuGH/plutoepg/internal/validate"
)

// maxBatchSize is the per-request channel limit of the timelines endpoint
// we are willing to send.
const maxBatchSize = 100

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("region.code", cfg.Region.Code)
	v.NotEmpty("region.lang", cfg.Region.Lang)
	v.IP("region.forwardedFor", strings.TrimSpace(cfg.Region.ForwardedFor))
	v.OptionalURL("proxy", cfg.Proxy, []string{"http", "https", "socks5"})

	v.OutputFile("output.path", cfg.Output.Path)
	if cfg.Output.ChannelList != "" {
		v.OutputFile("output.channelList", cfg.Output.ChannelList)
	}
	if cfg.Output.MetricsFile != "" {
		v.OutputFile("output.metricsFile", cfg.Output.MetricsFile)
	}

	v.PositiveDuration("fetch.timeout", cfg.Fetch.Timeout)
	if cfg.Fetch.RateLimit < 0 {
		v.AddError("fetch.rateLimit", "value cannot be negative", cfg.Fetch.RateLimit)
	}
	v.Range("fetch.batchSize", cfg.Fetch.BatchSize, 1, maxBatchSize)
	v.NonNegative("fetch.horizonHours", cfg.Fetch.HorizonHours)
	v.Positive("fetch.windowHours", cfg.Fetch.WindowHours)
	v.Range("fetch.retries", cfg.Fetch.Retries, 0, 10)
	if cfg.Fetch.Retries > 0 {
		v.PositiveDuration("fetch.retryDelay", cfg.Fetch.RetryDelay)
	}

	schemes := []string{"http", "https"}
	v.URL("endpoints.site", cfg.Endpoints.Site, schemes)
	v.URL("endpoints.boot", cfg.Endpoints.Boot, schemes)
	v.URL("endpoints.channels", cfg.Endpoints.Channels, schemes)
	v.URL("endpoints.timelines", cfg.Endpoints.Timelines, schemes)

	if _, err := validate.ParseLogLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}
	v.OneOf("log.format", cfg.Log.Format, []string{"json", "console"})

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.samplingRate", "value must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
