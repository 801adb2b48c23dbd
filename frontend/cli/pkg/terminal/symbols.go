package terminal

import "github.com/charmbracelet/lipgloss"

var (
	infoSymbolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true).
			SetString("ⓘ")

	errorSymbolStyle = lipgloss.NewStyle().
				SetString("❌")

	smallErrorSymbolStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true).
				SetString("✗")

	warningSymbolStyle = lipgloss.NewStyle().
				SetString("⚠️")

	successSymbolStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10")).
				Bold(true).
				SetString("✔")

	actionSymbolStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				SetString("▶")

	thoughtSymbolStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				SetString("…")

	boldStyle = lipgloss.NewStyle().Bold(true)
)

var (
	// InfoSymbol (ⓘ)
	InfoSymbol = infoSymbolStyle.String()

	// WarningSymbol (⚠️)
	WarningSymbol = warningSymbolStyle.String()

	// ErrorSymbol (❌)
	ErrorSymbol = errorSymbolStyle.String()

	// SmallErrorSymbol (✗)
	SmallErrorSymbol = smallErrorSymbolStyle.String()

	// SuccessSymbol (✔)
	SuccessSymbol = successSymbolStyle.String()

	// ActionSymbol (▶)
	ActionSymbol = actionSymbolStyle.String()

	// ThoughtSymbol (…)
	ThoughtSymbol = thoughtSymbolStyle.String()
)

func Bold(s string) string {
	return boldStyle.Render(s)
}
