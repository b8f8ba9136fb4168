// Package migrations embeds the goose migrations of the SQL credential store.
// The statements are portable between PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
