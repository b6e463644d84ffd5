// Package configs embeds the configuration templates written by
// `termsearch config init`.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .termsearch.yaml written into the
// config directory. Every key it sets matches the built-in default.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
