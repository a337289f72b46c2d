// Package migrations embeds the SQL files applied to every clinic schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
