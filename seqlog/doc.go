// Package seqlog implements the sequential append-only gesture log, the
// container variant for environments without a hierarchical file library.
//
// A log is a flat stream of framed msgpack records: a header record
// carrying the version tag and the global parameter block, then zero or
// more (label, component sets) records. There is no random access; a full
// scan to end of stream reconstructs the model store, with records for the
// same label accumulating in append order.
//
// Every record is framed as
//
//	uint32 payload length | uint32 CRC32(payload) | payload
//
// rather than relying on bare end-of-stream detection: an append-only file
// cannot carry a record-count trailer, but the frame makes silent
// truncation (a short final frame) and bit rot (checksum mismatch)
// distinguishable from a complete log, which ends cleanly on a frame
// boundary.
//
// Writers take a sidecar .lock file (flock) for the duration of a call;
// concurrent writers to the same log are refused, not queued.
package seqlog
