package templates

import (
	"strings"
	"testing"
)

func TestNewRenderer(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	for _, name := range []PromptTemplate{ProfessionalizeTemplate, SummarizeTemplate} {
		if _, err := renderer.Render(name, &TemplateData{}); err != nil {
			t.Errorf("Failed to render template %s: %v", name, err)
		}
	}
}

func TestRenderProfessionalize(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	out, err := renderer.Render(ProfessionalizeTemplate, &TemplateData{CommitLog: "\n  wip: stuff\n"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasSuffix(out, "Raw commit log:\nwip: stuff") {
		t.Errorf("commit log not embedded at end of prompt:\n%s", out)
	}
}

func TestRenderSummarize(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}

	out, err := renderer.Render(SummarizeTemplate, &TemplateData{Logs: "FAIL TestX", MaxSentences: 3})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "at most 3 sentences") {
		t.Errorf("sentence bound missing:\n%s", out)
	}
	if !strings.Contains(out, "FAIL TestX") {
		t.Errorf("logs missing:\n%s", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	if _, err := renderer.Render("nope.tpl.md", &TemplateData{}); err == nil {
		t.Error("expected error for unknown template")
	}
}
