package internaldefs

import (
	"github.com/MrEthical07/authmachine"
)

// Kind is the exposition type of a family.
type Kind uint8

const (
	KindCounter Kind = iota
	KindGauge
	// KindHistogram families expose Name+"_bucket" series labelled le and a
	// Name+"_count" series.
	KindHistogram
)

// Family is one exported metric name.
type Family struct {
	Name string
	Help string
	Kind Kind
}

// Label is one name="value" pair of a sample.
type Label struct {
	Name  string
	Value string
}

// Sample is one exported series value. Series is the family name plus the
// histogram suffix, if any.
type Sample struct {
	Family *Family
	Series string
	Labels []Label
	Value  uint64
}

var (
	FlowOutcomes = Family{
		Name: "authmachine_flow_outcomes_total",
		Help: "Completed auth flows by flow and outcome.",
		Kind: KindCounter,
	}
	Dispatch = Family{
		Name: "authmachine_dispatch_total",
		Help: "State machine work by stage: events resolved, states published, actions scheduled.",
		Kind: KindCounter,
	}
	StoreFailures = Family{
		Name: "authmachine_credential_store_failures_total",
		Help: "Failed credential store calls.",
		Kind: KindCounter,
	}
	ResolveLatency = Family{
		Name: "authmachine_resolve_latency_seconds",
		Help: "Time spent resolving one event.",
		Kind: KindHistogram,
	}
	ListenersActive = Family{
		Name: "authmachine_listeners_active",
		Help: "State listeners attached to the machine.",
		Kind: KindGauge,
	}
	ListenersDropped = Family{
		Name: "authmachine_listeners_dropped_total",
		Help: "State listeners detached for falling behind.",
		Kind: KindCounter,
	}
	QueueDepth = Family{
		Name: "authmachine_dispatch_queue_depth",
		Help: "Events waiting for the dispatch loop.",
		Kind: KindGauge,
	}
	AuditEvents = Family{
		Name: "authmachine_audit_events_total",
		Help: "Lifecycle events handed to the audit sink by outcome.",
		Kind: KindCounter,
	}
	AuditPending = Family{
		Name: "authmachine_audit_pending",
		Help: "Lifecycle events buffered for the audit sink.",
		Kind: KindGauge,
	}
	StateInfo = Family{
		Name: "authmachine_state_info",
		Help: "Current authentication and authorization state, always 1.",
		Kind: KindGauge,
	}
)

// Families lists every family in exposition order.
var Families = []*Family{
	&FlowOutcomes,
	&Dispatch,
	&StoreFailures,
	&ResolveLatency,
	&ListenersActive,
	&ListenersDropped,
	&QueueDepth,
	&AuditEvents,
	&AuditPending,
	&StateInfo,
}

// FlowOutcome maps one engine counter onto the flow and outcome labels.
type FlowOutcome struct {
	ID      authmachine.MetricID
	Flow    string
	Outcome string
}

var FlowOutcomeDefs = []FlowOutcome{
	{ID: authmachine.MetricSignInSuccess, Flow: "signin", Outcome: "success"},
	{ID: authmachine.MetricSignInFailure, Flow: "signin", Outcome: "failure"},
	{ID: authmachine.MetricSignUpSuccess, Flow: "signup", Outcome: "success"},
	{ID: authmachine.MetricSignUpFailure, Flow: "signup", Outcome: "failure"},
	{ID: authmachine.MetricSignOut, Flow: "signout", Outcome: "success"},
	{ID: authmachine.MetricUserDeleted, Flow: "delete_user", Outcome: "success"},
	{ID: authmachine.MetricSessionRefreshSuccess, Flow: "session", Outcome: "success"},
	{ID: authmachine.MetricSessionRefreshFailure, Flow: "session", Outcome: "failure"},
	{ID: authmachine.MetricFederationSuccess, Flow: "federation", Outcome: "success"},
	{ID: authmachine.MetricFederationFailure, Flow: "federation", Outcome: "failure"},
}

// DispatchStage maps one engine counter onto the stage label.
type DispatchStage struct {
	ID    authmachine.MetricID
	Stage string
}

var DispatchStageDefs = []DispatchStage{
	{ID: authmachine.MetricEventsResolved, Stage: "resolved"},
	{ID: authmachine.MetricStateTransitions, Stage: "published"},
	{ID: authmachine.MetricActionsScheduled, Stage: "actions"},
}

// HistogramBounds are the upper bounds of the engine buckets in seconds.
var HistogramBounds = [8]string{
	"0.00001",
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.005",
	"+Inf",
}

// Collect flattens t into samples in [Families] order. Counter families fed
// by the engine counters are skipped while metrics are disabled, and the
// audit families while no sink is configured. The listener, queue and state
// families are always present.
func Collect(t authmachine.Telemetry) []Sample {
	out := make([]Sample, 0, 32)
	add := func(f *Family, series string, v uint64, labels ...Label) {
		out = append(out, Sample{Family: f, Series: series, Labels: labels, Value: v})
	}

	counters := t.Metrics.Counters
	if len(counters) > 0 {
		for _, d := range FlowOutcomeDefs {
			add(&FlowOutcomes, FlowOutcomes.Name, counters[d.ID],
				Label{"flow", d.Flow}, Label{"outcome", d.Outcome})
		}
		for _, d := range DispatchStageDefs {
			add(&Dispatch, Dispatch.Name, counters[d.ID], Label{"stage", d.Stage})
		}
		add(&StoreFailures, StoreFailures.Name, counters[authmachine.MetricCredentialStoreFailure])
	}

	if raw, ok := t.Metrics.Histograms[authmachine.MetricResolveLatency]; ok {
		cumulative := CumulativeBuckets(raw)
		for i, le := range HistogramBounds {
			add(&ResolveLatency, ResolveLatency.Name+"_bucket", cumulative[i], Label{"le", le})
		}
		add(&ResolveLatency, ResolveLatency.Name+"_count", cumulative[len(cumulative)-1])
	}

	add(&ListenersActive, ListenersActive.Name, uint64(max(t.Listeners, 0)))
	add(&ListenersDropped, ListenersDropped.Name, t.ListenersDropped)
	add(&QueueDepth, QueueDepth.Name, uint64(max(t.QueueDepth, 0)))

	if t.AuditEnabled {
		add(&AuditEvents, AuditEvents.Name, t.Audit.Delivered, Label{"outcome", "delivered"})
		add(&AuditEvents, AuditEvents.Name, t.Audit.Dropped, Label{"outcome", "dropped"})
		add(&AuditPending, AuditPending.Name, uint64(max(t.Audit.Pending, 0)))
	}

	if t.Authentication != "" {
		add(&StateInfo, StateInfo.Name, 1,
			Label{"authentication", t.Authentication}, Label{"authorization", t.Authorization})
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals. Missing
// buckets count as zero.
func CumulativeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
