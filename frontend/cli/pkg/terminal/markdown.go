package terminal

import (
	"regexp"

	"github.com/charmbracelet/glamour"
)

var (
	leadingWhitespace  = regexp.MustCompile(`^(?:\x1b\[[0-9;]*m|\s)*`)
	trailingWhitespace = regexp.MustCompile(`(?:\x1b\[[0-9;]*m|\s)*$`)
)

// RenderMarkdown renders content for the terminal, wrapped at width. The
// result has no leading or trailing whitespace, escape sequences included.
func RenderMarkdown(content string, width int) (string, error) {
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"), // avoid OSC background queries
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	out, err := md.Render(content)
	if err != nil {
		return "", err
	}

	return trimTrailingWhitespaceWithANSI(trimLeadingWhitespaceWithANSI(out)), nil
}

func trimLeadingWhitespaceWithANSI(s string) string {
	return leadingWhitespace.ReplaceAllString(s, "")
}

func trimTrailingWhitespaceWithANSI(s string) string {
	return trailingWhitespace.ReplaceAllString(s, "")
}
