package migrations

import "embed"

// FS contains embedded PostgreSQL migrations for puzzle storage.
//
//go:embed *.sql
var FS embed.FS
