package handlers

import (
	"embed"
	"html/template"
	"unicode/utf8"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded pages for gin's HTML renderer.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"preview": preview,
	}).ParseFS(templateFS, "templates/*.html")
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
