// Package api содержит OpenAPI-документ, который отдаёт swagger-маршрут.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
