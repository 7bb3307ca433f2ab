// Package web embeds the server-rendered dashboard templates.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page template with funcs available
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
