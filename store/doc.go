// Package store provides the model store: the in-memory collection of
// fitted sensor models bound to one gesture file.
//
// A Store is created empty, populated in memory with AppendReading, and
// committed with Write, either recreating the file or merging into the
// groups already on disk. Read rebuilds the store wholesale from the file,
// dispatching on the schema version found in its header; a failed Read
// leaves the previous in-memory state untouched.
//
// The store supports both on-disk representations: the hierarchical
// container (container package) and the sequential append-only log (seqlog
// package), selected with WithFormat.
//
// Stores are single-writer. Write assumes exclusive access to the target
// file for the duration of the call; callers running multiple writers
// against one path must serialize them externally.
package store
