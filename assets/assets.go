// Package assets embeds the templates, the static content and the public files.
package assets

import "embed"

//go:embed all:templates content static
var FS embed.FS
