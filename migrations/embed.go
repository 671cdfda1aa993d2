// Package migrations holds the goose SQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
