package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Meta is the envelope header for json output and the frontmatter for
// markdown output.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Generated time.Time `json:"generated" yaml:"generated"`
}

// Renderable can render itself in multiple formats.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer, s Styles) error
	RenderJSON() any
	RenderMarkdown(w io.Writer) error
}

// Output handles formatted rendering with automatic envelope/frontmatter.
type Output struct {
	format Format
	w      io.Writer
	styles Styles
	now    func() time.Time
}

// NewOutput creates an unstyled output renderer for the given format.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w, styles: PlainStyles(), now: time.Now}
}

// NewStdout renders to stdout. Text output is colored when stdout is a
// terminal.
func NewStdout(format Format) *Output {
	out := NewOutput(format, os.Stdout)
	if isTerminal(os.Stdout) {
		out.styles = DefaultStyles()
	}
	return out
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Format returns the configured output format.
func (o *Output) Format() Format {
	return o.format
}

func (o *Output) newMeta(resultType string) Meta {
	return Meta{Type: resultType, Version: "v1", Generated: o.now().UTC()}
}

// Table creates a new table renderer attached to this output.
func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{out: o, meta: o.newMeta(resultType), headers: headers}
}

// KV creates a new key-value renderer attached to this output.
func (o *Output) KV(resultType string) *KV {
	return &KV{out: o, meta: o.newMeta(resultType)}
}

// StringList creates a new string list renderer attached to this output.
func (o *Output) StringList(resultType string) *StringList {
	return &StringList{out: o, meta: o.newMeta(resultType)}
}

// Result creates a new result renderer attached to this output.
func (o *Output) Result(resultType, message string) *Result {
	return &Result{out: o, meta: o.newMeta(resultType), message: message}
}

// Error creates a new error renderer attached to this output.
func (o *Output) Error(resultType string, err error) *Error {
	return &Error{out: o, meta: o.newMeta(resultType + "-error"), err: err}
}

// Render outputs the renderable in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatMarkdown:
		return o.renderMarkdown(r)
	default:
		return r.RenderText(o.w, o.styles)
	}
}

func (o *Output) renderJSON(r Renderable) error {
	envelope := struct {
		Meta Meta `json:"meta"`
		Data any  `json:"data"`
	}{
		Meta: r.Meta(),
		Data: r.RenderJSON(),
	}

	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

func (o *Output) renderMarkdown(r Renderable) error {
	if _, err := fmt.Fprintln(o.w, "---"); err != nil {
		return err
	}

	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Meta()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if _, err := fmt.Fprint(o.w, "---\n\n"); err != nil {
		return err
	}
	return r.RenderMarkdown(o.w)
}
