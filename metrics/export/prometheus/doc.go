// Package prometheus renders authmachine telemetry in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads [authmachine.Engine.Telemetry] on every
// scrape. Flow results are one family, authmachine_flow_outcomes_total,
// labelled flow and outcome. Listener, queue and audit readings sit beside
// them, and authmachine_state_info names the current sub-states.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
