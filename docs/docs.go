// Package docs ships the OpenAPI document of the HTTP API.
package docs

import _ "embed"

//go:embed v1/openapi.yml
var OpenAPI []byte
