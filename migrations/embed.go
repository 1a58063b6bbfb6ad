// Package migrations holds the photos and trips schema as goose SQL files.
package migrations

import "embed"

// FS is the embedded migration set. Up applies it at startup when
// MIGRATE_ON_START is set; integration tests run it through goose directly.
//
//go:embed *.sql
var FS embed.FS
