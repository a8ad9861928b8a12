package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goliatone/go-formflow/pkg/render"
)

// TextRenderer prints a View as plain text: the current values with their
// messages, then the submission history.
type TextRenderer struct {
	theme Theme
}

var _ render.Renderer = TextRenderer{}

// NewTextRenderer returns a TextRenderer using theme prefixes.
func NewTextRenderer(theme Theme) TextRenderer {
	return TextRenderer{theme: theme}
}

func (TextRenderer) Name() string { return "text" }

func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

func (r TextRenderer) Render(_ context.Context, view render.View) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n%s\n", view.Title, strings.Repeat("=", len(view.Title)))
	if view.Notice != "" {
		fmt.Fprintf(&buf, "%s%s\n", r.theme.InfoPrefix, view.Notice)
	}
	for _, message := range view.FormErrors {
		fmt.Fprintf(&buf, "%s%s\n", r.theme.ErrorPrefix, message)
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, field := range view.Fields {
		value := field.Value
		if len(field.Options) > 0 && field.Kind == "set" {
			var selected []string
			for _, option := range field.Options {
				if option.Selected {
					selected = append(selected, option.Value)
				}
			}
			value = strings.Join(selected, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\n", field.Label, value)
		if field.Error != "" {
			fmt.Fprintf(tw, "\t%s%s\n", r.theme.ErrorPrefix, field.Error)
		}
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}

	if len(view.History) == 0 {
		buf.WriteString("\nNo submissions yet.\n")
		return buf.Bytes(), nil
	}
	buf.WriteString("\nPrevious Submitted Data:\n")
	for i, summary := range view.History {
		fmt.Fprintf(&buf, "\n#%d  %s\n", i+1, summary.SubmittedAt.UTC().Format("2006-01-02 15:04 MST"))
		tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		for _, entry := range summary.Entries {
			fmt.Fprintf(tw, "  %s:\t%s\n", entry.Label, entry.Value)
		}
		if err := tw.Flush(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
