// Package configs provides the embedded configuration template for
// docsift.
//
// The template is embedded at build time with go:embed so it ships inside
// the binary regardless of how docsift was installed. It is written out
// by `docsift config init` as .docsift.yaml.
package configs

import _ "embed"

// ProjectConfigTemplate is the annotated .docsift.yaml starting point.
//
//go:embed docsift.example.yaml
var ProjectConfigTemplate string
