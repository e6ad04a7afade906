// Package redwrenlib stores fitted gesture models and evaluates sensor
// readings against them.
//
// A gesture is modeled per sensor as one or more Gaussian mixture component
// sets fitted over (timestamp, reading) samples. The library persists those
// models in versioned gesture files, loads them back, and scores new
// readings to decide whether a recorded motion matches the trained gesture.
//
// # Architecture
//
//	┌──────────────────────────────┐
//	│        match.Evaluator       │  scoring, thresholds,
//	│  (per-sensor log-likelihood) │  overall decision
//	└──────────────┬───────────────┘
//	               │ reads models from
//	┌──────────────┴───────────────┐
//	│         store.Store          │  in-memory models,
//	│  (append, parameters, keys)  │  all-or-nothing load
//	└──────┬────────────────┬──────┘
//	       │                │
//	┌──────┴──────┐  ┌──────┴──────┐
//	│  container  │  │   seqlog    │  on-disk formats:
//	│ (bbolt tree)│  │ (framed log)│  versioned container,
//	└─────────────┘  └─────────────┘  append-only log
//
// On top of the library sit cmd/gesture, a CLI for creating, inspecting,
// converting and matching gesture files, and the service package, which
// answers match requests over NATS request/reply.
//
// # Packages
//
// Core:
//   - model: fitted mixture parameters and validation
//   - container: versioned hierarchical gesture files (bbolt + msgpack)
//   - seqlog: sequential append-only log format
//   - store: the in-memory model store bound to one file
//   - match: the match evaluator
//
// Surfaces:
//   - service: NATS request/reply match service
//   - cmd/gesture: command line interface
//   - config: configuration loading for both
//
// Infrastructure:
//   - errors: structured error handling with kinds and call sites
//   - pkg/worker: bounded worker pool
//   - pkg/timestamp: flexible timestamp parsing onto the sample axis
//
// # File formats
//
// Two container generations exist. Version 1 files tag themselves with the
// string "0.0.1" and keep one global parameter block; version 2 files tag
// themselves with the integer 2 and keep parameters per sensor. Readers
// dispatch on the tag found in the file; writers refuse to mix
// generations in place. The sequential log is a CRC-framed record stream
// for append-heavy capture pipelines. The convert command translates
// between all of them.
//
// # Evaluation
//
// Scoring uses the fitted precision-Cholesky factors directly, so near
// singular fits stay numerically stable. Each sensor's best component-set
// score is compared against that sensor's threshold and the gesture
// matches only if every requested sensor matches.
package redwrenlib
