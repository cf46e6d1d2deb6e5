package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tordrt/lala/internal/relations"
)

// maxListedIDs caps how many ids are printed per table
const maxListedIDs = 10

// TextFormatter formats a discovered relation graph as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes one line per discovered table in discovery order
func (f *TextFormatter) Format(g *relations.Graph) error {
	for _, table := range g.Tables() {
		ids := g.IDs(table)
		if _, err := fmt.Fprintf(f.writer, "TABLE %s (%d ids): %s\n", table, len(ids), formatIDs(ids)); err != nil {
			return err
		}
	}
	return nil
}

func formatIDs(ids []int64) string {
	shown := ids
	if len(shown) > maxListedIDs {
		shown = shown[:maxListedIDs]
	}

	parts := make([]string, len(shown))
	for i, id := range shown {
		parts[i] = strconv.FormatInt(id, 10)
	}

	out := strings.Join(parts, ", ")
	if len(ids) > maxListedIDs {
		out += ", ..."
	}
	return out
}
