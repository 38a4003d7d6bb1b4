package cli

import (
	"fmt"
	"io"
)

type detail struct {
	key   string
	value any
}

// Result is a single-message outcome with ordered details.
// Created via Output.Result().
type Result struct {
	out     *Output
	meta    Meta
	message string
	details []detail
}

// With adds a detail key-value pair.
func (r *Result) With(key string, value any) *Result {
	r.details = append(r.details, detail{key, value})
	return r
}

func (r *Result) Render() error {
	return r.out.Render(r)
}

func (r *Result) Meta() Meta {
	return r.meta
}

func (r *Result) RenderText(w io.Writer, s Styles) error {
	if _, err := fmt.Fprintln(w, s.OK(r.message)); err != nil {
		return err
	}
	return writeDetails(w, s, r.details)
}

func (r *Result) RenderJSON() any {
	result := make(map[string]any, len(r.details)+1)
	result["message"] = r.message
	for _, d := range r.details {
		result[toJSONKey(d.key)] = d.value
	}
	return result
}

func (r *Result) RenderMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "**%s**\n\n", r.message); err != nil {
		return err
	}
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "- **%s:** %s\n", d.key, formatMarkdownValue(d.value)); err != nil {
			return err
		}
	}
	return nil
}

// Error is a structured error result.
// Created via Output.Error().
type Error struct {
	out     *Output
	meta    Meta
	err     error
	code    string
	details []detail
}

func (e *Error) WithCode(code string) *Error {
	e.code = code
	return e
}

func (e *Error) With(key string, value any) *Error {
	e.details = append(e.details, detail{key, value})
	return e
}

func (e *Error) Render() error {
	return e.out.Render(e)
}

func (e *Error) Meta() Meta {
	return e.meta
}

func (e *Error) RenderText(w io.Writer, s Styles) error {
	label := "Error"
	if e.code != "" {
		label = fmt.Sprintf("Error [%s]", e.code)
	}
	if _, err := fmt.Fprintf(w, "%s: %v\n", s.Error(label), e.err); err != nil {
		return err
	}
	return writeDetails(w, s, e.details)
}

func (e *Error) RenderJSON() any {
	result := map[string]any{"error": e.err.Error()}
	if e.code != "" {
		result["code"] = e.code
	}
	for _, d := range e.details {
		result[toJSONKey(d.key)] = d.value
	}
	return result
}

func (e *Error) RenderMarkdown(w io.Writer) error {
	label := "Error"
	if e.code != "" {
		label = fmt.Sprintf("Error [%s]", e.code)
	}
	if _, err := fmt.Fprintf(w, "> **%s:** %v\n", label, e.err); err != nil {
		return err
	}
	if len(e.details) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	for _, d := range e.details {
		if _, err := fmt.Fprintf(w, "- %s: %v\n", d.key, d.value); err != nil {
			return err
		}
	}
	return nil
}

func writeDetails(w io.Writer, s Styles, details []detail) error {
	maxLen := 0
	for _, d := range details {
		maxLen = max(maxLen, len(d.key)+1)
	}
	for _, d := range details {
		if _, err := fmt.Fprintf(w, "  %s  %s\n", s.Key(fmt.Sprintf("%-*s", maxLen, d.key+":")), formatValue(d.value)); err != nil {
			return err
		}
	}
	return nil
}
