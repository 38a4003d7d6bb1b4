package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
)

// KV renders ordered key-value pairs.
// Created via Output.KV().
type KV struct {
	out   *Output
	meta  Meta
	title string
	pairs []kvPair
}

type kvPair struct {
	key   string
	value any
}

// Set adds a key-value pair. Value can be any type.
func (k *KV) Set(key string, value any) *KV {
	k.pairs = append(k.pairs, kvPair{key: key, value: value})
	return k
}

// Title sets a heading shown above the pairs in text and markdown output.
func (k *KV) Title(title string) *KV {
	k.title = title
	return k
}

func (k *KV) Render() error {
	return k.out.Render(k)
}

func (k *KV) Meta() Meta {
	return k.meta
}

// RenderText writes aligned "key: value" lines using a borderless table.
func (k *KV) RenderText(w io.Writer, s Styles) error {
	if len(k.pairs) == 0 {
		return nil
	}
	if k.title != "" {
		if _, err := fmt.Fprintln(w, s.Title(k.title)); err != nil {
			return err
		}
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateHeader = false

	for _, p := range k.pairs {
		tw.AppendRow(table.Row{s.Key(p.key + ":"), formatValue(p.value)})
	}

	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

func (k *KV) RenderJSON() any {
	result := make(map[string]any, len(k.pairs))
	for _, p := range k.pairs {
		result[toJSONKey(p.key)] = p.value
	}
	return result
}

func (k *KV) RenderMarkdown(w io.Writer) error {
	if k.title != "" {
		if _, err := fmt.Fprintf(w, "## %s\n\n", k.title); err != nil {
			return err
		}
	}
	for _, p := range k.pairs {
		if _, err := fmt.Fprintf(w, "**%s:** %s\n\n", p.key, formatMarkdownValue(p.value)); err != nil {
			return err
		}
	}
	return nil
}

// StringList is a bulleted list of strings.
// Created via Output.StringList().
type StringList struct {
	out   *Output
	meta  Meta
	items []string
}

func (l *StringList) Add(items ...string) *StringList {
	l.items = append(l.items, items...)
	return l
}

func (l *StringList) Render() error {
	return l.out.Render(l)
}

func (l *StringList) Meta() Meta {
	return l.meta
}

func (l *StringList) RenderText(w io.Writer, s Styles) error {
	if len(l.items) == 0 {
		_, err := io.WriteString(w, s.Key("(none)")+"\n")
		return err
	}
	lw := list.NewWriter()
	lw.SetStyle(list.StyleBulletCircle)
	for _, item := range l.items {
		lw.AppendItem(item)
	}
	_, err := io.WriteString(w, lw.Render()+"\n")
	return err
}

// RenderJSON returns the items as an array, never null.
func (l *StringList) RenderJSON() any {
	if l.items == nil {
		return []string{}
	}
	return l.items
}

func (l *StringList) RenderMarkdown(w io.Writer) error {
	lw := list.NewWriter()
	lw.SetStyle(list.StyleMarkdown)
	for _, item := range l.items {
		lw.AppendItem(formatMarkdownValue(item))
	}
	_, err := io.WriteString(w, lw.RenderMarkdown()+"\n")
	return err
}

func formatValue(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprintf("%v", v)
}

// formatMarkdownValue wraps keys and hashes in backticks and escapes pipes.
func formatMarkdownValue(v any) string {
	s := formatValue(v)
	if looksLikeKey(s) {
		return "`" + s + "`"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

// looksLikeKey reports whether s is a long hex string, optionally with an
// "algo:" prefix.
func looksLikeKey(s string) bool {
	if _, rest, ok := strings.Cut(s, ":"); ok {
		s = rest
	}
	if len(s) < 16 {
		return false
	}
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
