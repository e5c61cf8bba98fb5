package migration

import "embed"

// Scripts holds the versioned SQL migrations. Layout is
// scripts/<tool>/<driver>/, with tool goose or migrate.
//
//go:embed scripts
var Scripts embed.FS
