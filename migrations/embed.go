// Package migrations embeds the PostgreSQL schema of the books as numbered
// up/down pairs.
package migrations

import "embed"

// Files holds the *.up.sql and *.down.sql migrations.
//
//go:embed *.sql
var Files embed.FS
