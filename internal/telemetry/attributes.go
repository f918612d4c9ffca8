// SPDX-License-Identifier: MIT

package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on guide refresh spans.
const (
	ServiceNameKey    = "service.name"
	ServiceVersionKey = "service.version"

	WindowStartKey = "guide.window.start"
	WindowIndexKey = "guide.window.index"
	BatchIndexKey  = "guide.batch.index"
	BatchSizeKey   = "guide.batch.size"
	ChannelsKey    = "guide.channels"
	ProgrammesKey  = "guide.programmes"
	AttemptsKey    = "guide.attempts"

	ErrorTypeKey = "error.type"
)

// WindowAttributes describes one timeline window.
func WindowAttributes(index int, start time.Time) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(WindowIndexKey, index),
		attribute.String(WindowStartKey, start.UTC().Format(time.RFC3339)),
	}
}

// BatchAttributes describes one channel id batch inside a window.
func BatchAttributes(index, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(BatchIndexKey, index),
		attribute.Int(BatchSizeKey, size),
	}
}

// GuideAttributes summarises a built guide.
func GuideAttributes(channels, programmes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ChannelsKey, channels),
		attribute.Int(ProgrammesKey, programmes),
	}
}
