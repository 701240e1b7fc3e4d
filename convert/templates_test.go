package convert

import (
	"testing"

	"brc/common"
	"brc/config"
)

func TestBuildTemplateValues(t *testing.T) {
	t.Run("with metadata", func(t *testing.T) {
		values := buildTemplateValues("War and Peace", "Leo Tolstoy", "books/source.epub", common.DocumentFmtEpub)
		if values.Title != "War and Peace" {
			t.Errorf("Title = %q", values.Title)
		}
		if values.Author != "Leo Tolstoy" {
			t.Errorf("Author = %q", values.Author)
		}
		if values.Format != "epub" {
			t.Errorf("Format = %q", values.Format)
		}
		if values.SourceFile != "source" {
			t.Errorf("SourceFile = %q", values.SourceFile)
		}
	})

	t.Run("title falls back to source name", func(t *testing.T) {
		values := buildTemplateValues("", "", "paper.pdf", common.DocumentFmtPdf)
		if values.Title != "paper" {
			t.Errorf("Title = %q, want %q", values.Title, "paper")
		}
		if values.Format != "pdf" {
			t.Errorf("Format = %q", values.Format)
		}
	})
}

func TestExpandTemplate(t *testing.T) {
	values := Values{Title: "My Book", Author: "Somebody", Format: "epub", SourceFile: "src"}

	t.Run("plain fields", func(t *testing.T) {
		got, err := expandTemplate(config.OutputNameTemplateFieldName, "{{.Author}} - {{.Title}}", values)
		if err != nil {
			t.Fatalf("expandTemplate() error = %v", err)
		}
		if got != "Somebody - My Book" {
			t.Errorf("expandTemplate() = %q", got)
		}
	})

	t.Run("sprig functions", func(t *testing.T) {
		got, err := expandTemplate(config.OutputNameTemplateFieldName, "{{ lower .Title }}", values)
		if err != nil {
			t.Fatalf("expandTemplate() error = %v", err)
		}
		if got != "my book" {
			t.Errorf("expandTemplate() = %q", got)
		}
	})

	t.Run("context carries field name", func(t *testing.T) {
		got, err := expandTemplate(config.OutputNameTemplateFieldName, "{{.Context}}", values)
		if err != nil {
			t.Fatalf("expandTemplate() error = %v", err)
		}
		if got != string(config.OutputNameTemplateFieldName) {
			t.Errorf("expandTemplate() = %q", got)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		if _, err := expandTemplate(config.OutputNameTemplateFieldName, "{{.Title", values); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		if _, err := expandTemplate(config.OutputNameTemplateFieldName, "{{.NoSuchField}}", values); err == nil {
			t.Error("expected execution error")
		}
	})
}
