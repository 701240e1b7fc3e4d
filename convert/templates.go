package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"brc/common"
	"brc/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Author     string
	Format     string
	SourceFile string
}

// buildTemplateValues assembles expansion values for a document. Title
// and author come from document metadata when the container carries any,
// the source file name fills in for formats that do not.
func buildTemplateValues(title, author, src string, format common.DocumentFmt) Values {
	sourceFile := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if title == "" {
		title = sourceFile
	}
	return Values{
		Title:      title,
		Author:     author,
		Format:     format.String(),
		SourceFile: sourceFile,
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
