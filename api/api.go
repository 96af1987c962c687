// Package api embeds the HTTP API description.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 document for the HTTP API
//
//go:embed openapi.yaml
var OpenAPI []byte
