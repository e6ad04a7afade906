package container

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/redwren/redwrenlib/errors"
)

// Version enumerates the container schema generations a reader can decode.
// The on-disk tag is read first and dispatched through exactly one switch;
// an unknown tag is fatal for the read, never guessed around.
type Version int

const (
	// V1 is the original schema, tag "0.0.1": a single global parameter
	// block applies to every sensor and sensor groups hold a flat ordered
	// list of component-set records.
	V1 Version = iota + 1
	// V2 is the current schema, integer tag 2: parameters live per sensor
	// and component sets append to existing sensor groups without
	// rewriting prior ones.
	V2
)

// tagV1 and tagV2 are the exact on-disk version tags. Matching is exact;
// there is no range or semver interpretation.
const (
	tagV1 = "0.0.1"
	tagV2 = int64(2)
)

// String returns the on-disk tag rendered for diagnostics.
func (v Version) String() string {
	switch v {
	case V1:
		return tagV1
	case V2:
		return "2"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// encodeTag serializes the version tag in its schema-native type: a string
// for V1, an integer for V2.
func (v Version) encodeTag() ([]byte, error) {
	switch v {
	case V1:
		return msgpack.Marshal(tagV1)
	case V2:
		return msgpack.Marshal(tagV2)
	default:
		return nil, errors.New(errors.KindUnsupportedVersion, "container", "encodeTag",
			fmt.Sprintf("unknown schema version %d", int(v)))
	}
}

// parseTag maps a raw version leaf to a Version. The tag may be a string
// ("0.0.1") or an integer (2); anything else, or any unknown value, is an
// unsupported-version failure naming the tag found.
func parseTag(raw []byte) (Version, error) {
	var s string
	if err := msgpack.Unmarshal(raw, &s); err == nil {
		if s == tagV1 {
			return V1, nil
		}
		return 0, errors.New(errors.KindUnsupportedVersion, "container", "parseTag",
			fmt.Sprintf("unsupported container version %q", s))
	}

	var n int64
	if err := msgpack.Unmarshal(raw, &n); err == nil {
		if n == tagV2 {
			return V2, nil
		}
		return 0, errors.New(errors.KindUnsupportedVersion, "container", "parseTag",
			fmt.Sprintf("unsupported container version %d", n))
	}

	return 0, errors.New(errors.KindUnsupportedVersion, "container", "parseTag",
		"version tag is neither a string nor an integer")
}
