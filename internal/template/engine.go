package template

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// File is a parsed configuration file template. It is safe for concurrent
// use.
type File struct {
	name string
	tmpl *template.Template
}

// Parse parses text as a template with the sprig function set. Missing
// keys are errors rather than "<no value>" in the output.
func Parse(name, text string) (*File, error) {
	t, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &File{name: name, tmpl: t}, nil
}

// Must is like Parse but panics on error. It is meant for package-level
// templates compiled into the binary.
func Must(name, text string) *File {
	f, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the template name.
func (f *File) Name() string { return f.name }

// Render executes the template against data.
func (f *File) Render(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", f.name, err)
	}
	return buf.Bytes(), nil
}
