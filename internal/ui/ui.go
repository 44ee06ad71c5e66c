// Package ui provides terminal styling for the pai interactive session.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors.
var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorError   = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#808890")
	colorAccent  = lipgloss.Color("#7E57C2")
)

// Styles holds the styled components used by the session driver.
type Styles struct {
	Title   lipgloss.Style
	Prompt  lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Panel   lipgloss.Style
}

// DefaultStyles returns the standard style set.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true),

		Body: lipgloss.NewStyle(),

		Muted: lipgloss.NewStyle().
			Foreground(colorMuted),

		Success: lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(colorInfo),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
	}
}

// Printer renders styled status lines and panels to stdout.
type Printer struct {
	styles Styles
}

// NewPrinter creates a Printer with default styles.
func NewPrinter() *Printer {
	return &Printer{styles: DefaultStyles()}
}

// Successf prints a success status line.
func (p *Printer) Successf(format string, args ...interface{}) {
	fmt.Println(p.styles.Success.Render("[ok] ") + fmt.Sprintf(format, args...))
}

// Errorf prints an error status line.
func (p *Printer) Errorf(format string, args ...interface{}) {
	fmt.Println(p.styles.Error.Render("[error] ") + fmt.Sprintf(format, args...))
}

// Warnf prints a warning status line.
func (p *Printer) Warnf(format string, args ...interface{}) {
	fmt.Println(p.styles.Warning.Render("[warn] ") + fmt.Sprintf(format, args...))
}

// Infof prints an informational status line.
func (p *Printer) Infof(format string, args ...interface{}) {
	fmt.Println(p.styles.Info.Render("[info] ") + fmt.Sprintf(format, args...))
}

// Mutedf prints a low-emphasis line.
func (p *Printer) Mutedf(format string, args ...interface{}) {
	fmt.Println(p.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// Plainf prints an unstyled line.
func (p *Printer) Plainf(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Panel prints a bordered panel with a title.
func (p *Printer) Panel(title, body string) {
	content := p.styles.Title.Render(title)
	if strings.TrimSpace(body) != "" {
		content += "\n" + body
	}
	fmt.Println(p.styles.Panel.Render(content))
}

// Prompt renders the interactive input prompt.
func (p *Printer) Prompt(workspace string) string {
	return p.styles.Prompt.Render(fmt.Sprintf("pai(%s)> ", workspace))
}

// Banner prints the session banner.
func (p *Printer) Banner(version, workspace string) {
	p.Panel(fmt.Sprintf("pai %s", version),
		p.styles.Muted.Render("workspace: "+workspace)+"\n"+
			p.styles.Muted.Render("type a request, or exit/quit to leave"))
}
