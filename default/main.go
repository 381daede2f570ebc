// Package defaults provides the embedded default configuration.
package defaults

import _ "embed"

//go:embed default_config.toml
var DefaultConfigTOML []byte
