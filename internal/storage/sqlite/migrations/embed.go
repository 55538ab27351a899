// Package migrations embeds the world-store schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
