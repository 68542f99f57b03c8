// Package otel binds authmachine telemetry to an OpenTelemetry meter.
//
// [NewOTelExporter] registers one observable instrument per series: counters
// for the flow, dispatch, listener-drop and audit families, gauges for live
// readings and for the latency buckets. A single callback reads
// [authmachine.Engine.Telemetry] on each collection and maps sample labels,
// such as flow="signin", to attributes.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
