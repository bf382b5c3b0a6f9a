// Package migrations embeds the index schema. Files are named
// NNN_description.up.sql and applied in version order.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
