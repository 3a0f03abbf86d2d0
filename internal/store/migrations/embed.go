// Package migrations embeds the ordered schema migration steps. Files are
// named NNNNNN_name.up.sql and applied strictly sequentially; a missing step
// is a fatal startup error.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
