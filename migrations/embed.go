package migrations

import "embed"

// Files embeds the SQL migrations applied by the migrate command.
//
//go:embed *.sql
var Files embed.FS
