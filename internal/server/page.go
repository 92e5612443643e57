// internal/server/page.go
package server

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"loan-checker/internal/models"
	"loan-checker/internal/presentation"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

const indexTemplate = "index.html"

type option struct {
	Value string
	Label string
}

type pageData struct {
	View        presentation.View
	Purposes    []option
	Employments []option
}

func newPageData(view presentation.View) pageData {
	return pageData{
		View:        view,
		Purposes:    options(models.LoanPurposes),
		Employments: options(models.EmploymentStatuses),
	}
}

func options(values []string) []option {
	out := make([]option, 0, len(values))
	for _, v := range values {
		out = append(out, option{Value: v, Label: label(v)})
	}
	return out
}

// label title-cases each word of v: "school fees" becomes "School Fees".
func label(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		parts := strings.Split(w, "-")
		for j, p := range parts {
			if p != "" {
				parts[j] = strings.ToUpper(p[:1]) + p[1:]
			}
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

func loadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return tmpl, nil
}
