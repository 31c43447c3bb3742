package migrations

import "embed"

// FS holds the Postgres schema migrations applied by goose.
//
//go:embed *.sql
var FS embed.FS
