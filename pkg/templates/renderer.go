// Package templates renders the prompts sent to the summarization model.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// TemplateData holds the values prompts can reference.
type TemplateData struct {
	// CommitLog is the raw log of an attempt branch.
	CommitLog string
	// Logs is the bounded CI failure excerpt.
	Logs string
	// MaxSentences bounds summary length.
	MaxSentences int
}

// PromptTemplate names an embedded template.
type PromptTemplate string

const (
	// ProfessionalizeTemplate turns a raw commit log into one conventional commit message.
	ProfessionalizeTemplate PromptTemplate = "professionalize.tpl.md"
	// SummarizeTemplate condenses CI failure logs into a short actionable hint.
	SummarizeTemplate PromptTemplate = "summarize.tpl.md"
)

// Renderer holds the parsed prompt templates.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[PromptTemplate]*template.Template)}

	for _, name := range []PromptTemplate{ProfessionalizeTemplate, SummarizeTemplate} {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Funcs(template.FuncMap{
			"trim": strings.TrimSpace,
		}).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the named template with data.
func (r *Renderer) Render(name PromptTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[name]
	if !exists {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
