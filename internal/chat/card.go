package chat

import (
	"fmt"
	"strings"
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Card is a rich message. Platforms that cannot render it fall back to Plain.
type Card struct {
	Title       string
	URL         string
	Description string
	Thumbnail   string
	Color       int
	Fields      []Field
	Footer      string
}

func (c Card) Plain() string {
	var b strings.Builder

	if c.Title != "" {
		fmt.Fprintf(&b, "**%s**\n", c.Title)
	}
	if c.Description != "" {
		b.WriteString(c.Description)
		b.WriteString("\n")
	}
	for _, f := range c.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	if c.URL != "" {
		fmt.Fprintf(&b, "<%s>\n", c.URL)
	}
	if c.Footer != "" {
		b.WriteString(c.Footer)
	}

	return strings.TrimRight(b.String(), "\n")
}

// RGB is a colour in 0..255 components.
type RGB [3]int

func (c RGB) Int() int {
	return c[0]<<16 | c[1]<<8 | c[2]
}

const colorStep = 15

// NextColor walks the hue wheel one step: one channel rises while the next
// falls, so the colour never passes through grey.
func NextColor(c RGB) RGB {
	r, g, b := c[0], c[1], c[2]

	switch {
	case r == 255 && b == 0 && g < 255:
		g = min(g+colorStep, 255)
	case g == 255 && b == 0 && r > 0:
		r = max(r-colorStep, 0)
	case g == 255 && r == 0 && b < 255:
		b = min(b+colorStep, 255)
	case b == 255 && r == 0 && g > 0:
		g = max(g-colorStep, 0)
	case b == 255 && g == 0 && r < 255:
		r = min(r+colorStep, 255)
	case r == 255 && g == 0 && b > 0:
		b = max(b-colorStep, 0)
	default:
		return RGB{255, 0, 0}
	}

	return RGB{r, g, b}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

// Escape neutralises markdown in user-controlled text such as display names.
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}

// ProgressBar renders a fixed-width bar for elapsed out of total.
func ProgressBar(elapsed, total float64, width int) string {
	if width <= 0 {
		return ""
	}

	filled := 0
	if total > 0 {
		filled = int(elapsed / total * float64(width))
	}
	filled = max(0, min(filled, width))

	return strings.Repeat("▬", filled) + "🔘" + strings.Repeat("▬", width-filled)
}
