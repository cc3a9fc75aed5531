// Package appfs embeds the SQL migrations & email templates shipped with the binaries.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
