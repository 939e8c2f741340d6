// Package migrations embeds SQL migration files for the email store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
