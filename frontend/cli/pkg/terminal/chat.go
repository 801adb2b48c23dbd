package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	v1 "github.com/furisto/switchboard/api/go/v1"
)

var (
	thoughtStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	toolOutputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// ChatPrinter writes agent responses as they arrive. Answer chunks are
// written inline; everything else gets a line of its own.
type ChatPrinter struct {
	w io.Writer
	// midLine is set while the last chunk did not end the line.
	midLine bool
	// Quiet suppresses chunks, for callers that render the answer later.
	Quiet bool
}

func NewChatPrinter(w io.Writer) *ChatPrinter {
	return &ChatPrinter{w: w}
}

func (p *ChatPrinter) Print(resp *v1.AgentResponse) {
	switch event := resp.Event.(type) {
	case v1.EventChunk:
		if p.Quiet || event.Text == "" {
			return
		}
		fmt.Fprint(p.w, event.Text)
		p.midLine = !strings.HasSuffix(event.Text, "\n")
	case v1.EventThought:
		p.line(fmt.Sprintf("%s %s", ThoughtSymbol, thoughtStyle.Render(event.Text)))
	case v1.EventToolCall:
		p.line(fmt.Sprintf("%s %s(%s) %s", ActionSymbol, Bold(event.ToolName), event.ToolInput, event.Status))
		if event.ToolOutput != "" {
			p.line("  " + toolOutputStyle.Render(event.ToolOutput))
		}
	case v1.EventError:
		p.line(fmt.Sprintf("%s %s", SmallErrorSymbol, event.Message))
	case v1.EventDone:
		p.endLine()
	}
}

func (p *ChatPrinter) line(s string) {
	p.endLine()
	fmt.Fprintln(p.w, s)
}

func (p *ChatPrinter) endLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

// Finish terminates a partially written answer line.
func (p *ChatPrinter) Finish() {
	p.endLine()
}
