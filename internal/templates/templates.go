// Package templates embeds the portal's HTML views.
package templates

import (
	"embed"
	"html/template"
	"time"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

//go:embed *.html
var files embed.FS

var funcs = template.FuncMap{
	"semesters": func() []string { return entity.Semesters },
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	},
}

// Parse parses every view. Pages are looked up by file name, e.g.
// "login.html".
func Parse() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "*.html")
}
