// Package internaldefs turns an [authmachine.Telemetry] read into the
// labelled samples both exporters publish.
//
// Flow counters share one family labelled flow and outcome, the dispatch
// counters one family labelled stage. Live readings of the dispatch loop,
// such as attached listeners and queue depth, are gauges. The exporters only
// translate samples into their own wire format.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
