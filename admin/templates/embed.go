// Package templates provides the embedded admin UI templates.
package templates

import "embed"

// TemplateFS contains the embedded admin HTML templates. layout.html is
// the shared frame, login.html is a standalone page, every other file
// defines a "content" block rendered inside the layout.
//
//go:embed *.html
var TemplateFS embed.FS
