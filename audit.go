package authmachine

import (
	"io"

	"github.com/MrEthical07/authmachine/internal/audit"
)

// AuditEvent is an auth lifecycle event delivered to the configured sink.
type AuditEvent = audit.Event

// AuditSink receives lifecycle events. Emit runs on the dispatcher goroutine
// and must not call back into the engine synchronously.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel read through Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// MultiSink fans events out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
