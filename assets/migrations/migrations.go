// Package migrations embeds the postgres schema, one up and one down file per version.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
