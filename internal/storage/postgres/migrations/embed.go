package migrations

import "embed"

// FS contains the Postgres schema for the account store, applied in file-name order.
//
//go:embed *.sql
var FS embed.FS
