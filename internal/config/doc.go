// Package config loads, validates, and normalizes clipforge configuration
// from TOML, with an embedded annotated sample used by "config init".
package config
