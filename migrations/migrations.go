// Package migrations embeds the SQL schema migrations applied at startup.
package migrations

import "embed"

// FS holds one sub-directory of migrations per database driver
//
//go:embed postgres/*.sql
var FS embed.FS
