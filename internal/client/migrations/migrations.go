// Package migrations embeds the local schema of the chat client.
package migrations

import "embed"

//go:embed sqlite/*.sql
var Migrations embed.FS
