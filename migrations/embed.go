// Package migrations embeds the SQL schema for the postgres document store.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql files
//
//go:embed *.sql
var FS embed.FS
