package migrations

import "embed"

// FS holds the SQL migrations for the formsheet SQLite database.
//
//go:embed *.sql
var FS embed.FS
