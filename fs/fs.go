// Package appfs embeds the files shipped with the app binaries.
package appfs

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
