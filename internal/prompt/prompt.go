// Package prompt renders the bracketed-section system prompts shared by the
// conversational agents and the synthesizer.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
)

// Builder accumulates "[TITLE]\nbody\n" sections. Empty sections are skipped.
type Builder struct {
	buf bytes.Buffer
}

// Section appends a titled section.
func (b *Builder) Section(title, body string) *Builder {
	if strings.TrimSpace(body) == "" {
		return b
	}
	b.buf.WriteString("[")
	b.buf.WriteString(title)
	b.buf.WriteString("]\n")
	b.buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.buf.WriteString("\n")
	}
	b.buf.WriteString("\n")
	return b
}

// List appends a titled section rendered as "- item" lines.
func (b *Builder) List(title string, items []string) *Builder {
	return b.Section(title, FormatList(items))
}

// String returns the prompt with a single trailing newline.
func (b *Builder) String() string {
	return strings.TrimSpace(b.buf.String()) + "\n"
}

// FormatList renders items as a markdown bullet list, dropping blanks.
func FormatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Field describes one key of a requested JSON object.
type Field struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// FormatFields renders an output schema as a bullet list.
func FormatFields(fields []Field) string {
	var buf strings.Builder
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s, %s): %s\n", name, f.Type, req, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s, %s)\n", name, f.Type, req)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}
