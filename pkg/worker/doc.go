// Package worker provides a generic bounded worker pool.
//
// The match service uses it to process NATS requests off the subscription
// callback: requests are submitted to the pool and scored on a fixed set
// of goroutines, with a non-blocking queue so overload drops requests
// instead of stalling the connection. The pool is generic over the work
// type and carries optional Prometheus instrumentation.
package worker
