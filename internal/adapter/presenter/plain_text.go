// Package presenter renders bot messages for text-only outputs.
package presenter

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
)

const ruleWidth = 40

// PlainTextRenderer renders a BotMessage as plain text lines.
// It backs the offline engine and plain-text fallbacks.
type PlainTextRenderer struct{}

// NewPlainTextRenderer creates a new plain-text renderer.
func NewPlainTextRenderer() *PlainTextRenderer {
	return &PlainTextRenderer{}
}

var _ message.Renderer[string] = (*PlainTextRenderer)(nil)

// Render converts the message to newline-separated text. Element order is kept.
func (f *PlainTextRenderer) Render(msg message.BotMessage) string {
	var lines []string

	if banner := f.getStyleMarker(msg.Style()); banner != "" {
		lines = append(lines, banner)
	}

	for _, el := range msg.Elements() {
		lines = append(lines, f.formatElement(el)...)
	}

	return strings.Join(lines, "\n")
}

func (f *PlainTextRenderer) formatElement(el message.Element) []string {
	switch e := el.(type) {
	case message.Text:
		return []string{f.formatText(e)}
	case message.Heading:
		return f.formatHeading(e)
	case message.Image:
		return []string{fmt.Sprintf("[Image: %s] URL: %s", e.AltText, e.URL)}
	case message.Divider:
		return []string{strings.Repeat("-", ruleWidth)}
	case message.KeyValueList:
		out := make([]string, 0, len(e.Items))
		for _, item := range e.Items {
			out = append(out, fmt.Sprintf("%s: %s", item.Key, item.Value))
		}
		return out
	case message.Context:
		return []string{quote(e.Content)}
	default:
		return nil
	}
}

func (f *PlainTextRenderer) formatText(t message.Text) string {
	switch t.Style {
	case message.TextBold:
		return "*" + t.Content + "*"
	case message.TextItalic:
		return "_" + t.Content + "_"
	case message.TextCode:
		return "`" + t.Content + "`"
	case message.TextQuote:
		return quote(t.Content)
	default:
		return t.Content
	}
}

// quote prefixes every line of s with "> ".
func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// formatHeading renders a title over an underline, '=' for level 1 and '-' below.
func (f *PlainTextRenderer) formatHeading(h message.Heading) []string {
	underline := "="
	if h.Level > 1 {
		underline = "-"
	}
	width := utf8.RuneCountInString(h.Content)
	if width == 0 {
		width = ruleWidth
	}
	return []string{h.Content, strings.Repeat(underline, width)}
}

// getStyleMarker returns a banner line for the message style.
func (f *PlainTextRenderer) getStyleMarker(style message.Style) string {
	switch style {
	case message.StyleInfo:
		return "ℹ️ [INFO]"
	case message.StyleWarning:
		return "⚠️ [WARNING]"
	case message.StyleError:
		return "❌ [ERROR]"
	case message.StyleSuccess:
		return "✅ [SUCCESS]"
	case message.StyleNeutral:
		return "💬 [NOTE]"
	default:
		return ""
	}
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
