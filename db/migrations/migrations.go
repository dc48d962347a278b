// Package migrations embeds the goose migrations for the transition journal.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
