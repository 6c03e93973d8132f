// Package migrations embeds the relay directory schema, one goose
// migration set per SQL dialect. The set to run is chosen by directory name:
// "postgres" or "sqlite".
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
