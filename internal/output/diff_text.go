package output

import (
	"strings"

	"github.com/fatih/color"

	"sqlkit/internal/diff"
)

// palette colors text report lines. A disabled palette returns text as is.
type palette struct {
	added, removed, changed, header *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		changed: color.New(color.FgYellow),
		header:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.added, p.removed, p.changed, p.header} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// formatDiffText colors the plain report of d section by section.
func (p palette) formatDiffText(d *diff.SchemaDiff) string {
	lines := strings.Split(d.String(), "\n")
	current := (*color.Color)(nil)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, ":") && !strings.HasPrefix(trimmed, "- ") {
			current = p.section(trimmed)
			lines[i] = p.header.Sprint(line)
			continue
		}
		if current != nil && trimmed != "" {
			lines[i] = current.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (p palette) section(header string) *color.Color {
	switch {
	case strings.HasPrefix(header, "Added"):
		return p.added
	case strings.HasPrefix(header, "Removed"):
		return p.removed
	case strings.HasPrefix(header, "Modified"), strings.HasPrefix(header, "Renamed"),
		strings.HasPrefix(header, "Primary key"), strings.HasPrefix(header, "Options"),
		strings.HasPrefix(header, "Warnings"):
		return p.changed
	}
	return nil
}
