// Package migrations embeds the backend schema.
package migrations

import "embed"

// FS holds the numbered up/down migrations.
//
//go:embed *.sql
var FS embed.FS
