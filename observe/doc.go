// Package observe is the telemetry backbone of the ontology platform:
// OpenTelemetry tracing and metrics plus structured JSON logging, all
// reached through one Observer facade.
//
// Every domain package — the hook pipeline, the lock manager, the DLQ
// — takes an observe.Logger (and, where it emits
// metrics, the Observer's Meter) instead of importing a logging
// library directly. That keeps the telemetry surface swappable at the
// composition root: ontologyd decides once whether spans go to OTLP or
// stdout, whether metrics are scraped by Prometheus, and at what level
// logs are emitted.
//
// Spans and metrics are named per operation: a unit of platform work
// such as a pipeline run, a sink publish, a lock acquisition, or a DLQ
// retry, described by an OpMeta. Log entries carry the active trace id
// automatically so a commit can be followed from ingress through sink
// fan-out without threading identifiers by hand.
//
// Logging redacts well-known credential field keys. The raw diff
// payload is never logged by convention; validators log derived facts
// (sizes, counts, matched rules) instead.
package observe
