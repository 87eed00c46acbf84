package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"
)

var ErrTemplateNotFound = errors.New("template not found")

//go:embed files/*.html
var files embed.FS

// Data is the bag handed to a template on render.
type Data struct {
	FullName string
	Email    string
	JobTitle string
	Country  string

	UnsubscribeURL string
	StartURL       string
}

type Rendered struct {
	Subject string
	HTML    string
}

type Renderer interface {
	Render(name string, data Data) (Rendered, error)
	Has(name string) bool
	List() []string
}

type entry struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// Registry is an explicit template-name to render-function mapping, built once
// at startup and passed around by reference. No package level state.
type Registry struct {
	templates map[string]entry
}

// New returns a registry preloaded with the embedded default templates.
func New() (*Registry, error) {
	r := &Registry{templates: map[string]entry{}}

	defaults := map[string]string{
		"welcome":   "Welcome, {{.FullName}}!",
		"marketing": "Build Your Second Income Stream",
	}

	for name, subject := range defaults {
		raw, err := files.ReadFile("files/" + name + ".html")
		if err != nil {
			return nil, fmt.Errorf("could not read embedded template %s, %w", name, err)
		}
		err = r.Register(name, subject, string(raw))
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(name, subject, body string) error {
	st, err := texttemplate.New(name + "_subject").Parse(subject)
	if err != nil {
		return fmt.Errorf("could not parse subject template for %s, %w", name, err)
	}
	bt, err := htmltemplate.New(name).Parse(body)
	if err != nil {
		return fmt.Errorf("could not parse body template for %s, %w", name, err)
	}
	r.templates[name] = entry{subject: st, body: bt}
	return nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

func (r *Registry) List() []string {
	var names []string
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Render(name string, data Data) (Rendered, error) {
	e, ok := r.templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	var subject bytes.Buffer
	err := e.subject.Execute(&subject, data)
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to render subject of %s, %w", name, err)
	}

	var body bytes.Buffer
	err = e.body.Execute(&body, data)
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to render body of %s, %w", name, err)
	}

	return Rendered{Subject: subject.String(), HTML: body.String()}, nil
}
