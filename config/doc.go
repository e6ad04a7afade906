// Package config loads and validates the application configuration used by
// the gesture CLI and the NATS match service.
//
// Configuration is a plain struct layered over DefaultConfig: a YAML or
// JSON file (chosen by extension) overrides only the fields it names.
// Validate runs at load time so bad values fail at startup with a typed
// error instead of surfacing mid-operation.
package config
