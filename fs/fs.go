package appfs

import "embed"

// FS carries the SQL migrations and email templates shipped with the binary.
//
//go:embed migrations all:templates
var FS embed.FS
