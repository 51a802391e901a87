// Package page assembles complete HTML documents from render fragments.
package page

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"github.com/sklonger/sklonger/internal/render"
)

//go:embed assets/style.css
var stylesheet string

// Assembler writes page shells around rendered fragments. It is safe for
// concurrent use.
type Assembler struct {
	tmpl *template.Template
}

// shell is the data passed to every template that emits a document head.
type shell struct {
	render.Document
	CSS template.CSS
}

type landingView struct {
	shell
	Value   string
	Problem string
}

type errorView struct {
	shell
	Code    int
	Heading string
	Message string
}

// New parses the page templates.
func New() (*Assembler, error) {
	tmpl := template.New("page")
	for _, src := range []string{shellHead, threadTemplates, landingTemplate, errorTemplate} {
		if _, err := tmpl.Parse(src); err != nil {
			return nil, fmt.Errorf("parse page templates: %w", err)
		}
	}
	return &Assembler{tmpl: tmpl}, nil
}

// Thread writes a complete thread page.
func (a *Assembler) Thread(w io.Writer, doc render.Document) error {
	return a.exec(w, "thread", a.shell(doc))
}

// StreamOpen writes everything up to and including the opening of the post list.
func (a *Assembler) StreamOpen(w io.Writer, doc render.Document) error {
	return a.exec(w, "open", a.shell(doc))
}

// StreamPost writes one rendered post.
func (a *Assembler) StreamPost(w io.Writer, post template.HTML) error {
	return a.exec(w, "post", post)
}

// StreamClose closes the post list and writes the footer.
func (a *Assembler) StreamClose(w io.Writer, doc render.Document) error {
	return a.exec(w, "close", a.shell(doc))
}

// StreamError closes a partially written thread page with an error notice.
// message must not contain upstream-provided text.
func (a *Assembler) StreamError(w io.Writer, message string) error {
	return a.exec(w, "streamError", message)
}

// Fragments writes bare post fragments with no surrounding document.
func (a *Assembler) Fragments(w io.Writer, posts []template.HTML) error {
	return a.exec(w, "fragments", posts)
}

// Landing writes the start page. value pre-fills the URL field and problem,
// when set, is shown below the form.
func (a *Assembler) Landing(w io.Writer, value, problem string) error {
	view := landingView{
		shell:   a.shell(render.Document{Lang: "en", Title: render.SiteName + " - read Bluesky threads"}),
		Value:   value,
		Problem: problem,
	}
	return a.exec(w, "landing", view)
}

// Error writes a standalone error page.
func (a *Assembler) Error(w io.Writer, code int, heading, message string) error {
	view := errorView{
		shell:   a.shell(render.Document{Lang: "en", Title: fmt.Sprintf("%d %s - %s", code, heading, render.SiteName)}),
		Code:    code,
		Heading: heading,
		Message: message,
	}
	return a.exec(w, "error", view)
}

func (a *Assembler) shell(doc render.Document) shell {
	return shell{Document: doc, CSS: template.CSS(stylesheet)}
}

func (a *Assembler) exec(w io.Writer, name string, data any) error {
	if err := a.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
