// Package service exposes gesture match evaluation over NATS.
//
// The service loads a gesture file into a model store on Start, queue
// subscribes to a request subject and answers each MatchRequest with a
// MatchResponse on its reply subject. Evaluation happens on a bounded
// worker pool; when the pool is saturated the request is answered with an
// overload error rather than queued indefinitely.
//
// Every request gets a request ID (caller-provided or generated) that
// appears in the response and in the service logs. Failures never go
// unanswered: malformed payloads, bad timestamps and evaluation errors
// all come back as a response with Error set.
//
// Metrics for the evaluator and the pool are kept on a private Prometheus
// registry, served on /metrics when a listen address is configured.
package service
