// Package migrations contiene el esquema versionado para goose.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
