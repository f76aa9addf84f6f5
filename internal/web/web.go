// Package web carries the embedded screen templates.
package web

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var content embed.FS

// Templates parses the embedded screens. Each file is a full page
// addressed by its base name.
func Templates() (*template.Template, error) {
	tpl, err := template.ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	return tpl, nil
}
