// Package migrations embeds the SQL schema applied by `eventdesk migrate up`.
package migrations

import "embed"

// FS holds the *.sql migrations in lexical order
//
//go:embed *.sql
var FS embed.FS
