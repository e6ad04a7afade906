// Package container implements the versioned on-disk schema for gesture
// model files and the version dispatch that selects a codec per file.
//
// # Layout
//
// A container is a bbolt file with two root groups:
//
//	meta/
//	    version              schema tag, read before anything else
//	    n_components         (V1 only) global parameter block
//	    random_state
//	    threshold
//	sensors/
//	    <label>/
//	        n_components     (V2 only) per-sensor parameter block
//	        random_state
//	        threshold
//	        model_0/         component-set records, indexed from 0
//	            weights
//	            means
//	            covariances
//	            precision_cholesky
//	            n_components
//	        model_1/
//	        ...
//
// Leaves are msgpack-encoded. Component-set records are addressed by
// constructed index (model_0 .. model_{count-1}); appending under V2 numbers
// new records from the group's current count, so prior records are never
// rewritten.
//
// # Schema generations
//
// Two generations coexist and both stay readable. V1 (tag "0.0.1") scopes
// the parameter block globally; V2 (tag 2) scopes it per sensor. They are
// different contracts: a V1 file's global threshold governed every sensor
// when it was written, so readers fold it into each entry rather than
// inventing per-sensor values, and writers never silently upgrade a file.
//
// # Errors
//
// A missing or undecodable field is a corrupt-container failure naming the
// offending sensor and field. An unknown version tag is an
// unsupported-version failure naming the tag; there is no fallback decode.
// Writes are single transactions, so a failed write rolls back whole and a
// container can never lose its version header to a partial commit.
package container
