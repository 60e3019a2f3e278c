// Package migrations embeds the record-store schema applied by goose at
// connect time.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
