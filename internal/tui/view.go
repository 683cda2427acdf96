package tui

import (
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/engine"
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleSubtle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleCursor    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleHeld      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	styleMissing   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true)
	styleCorrect   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleIncorrect = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stylePartial   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleStatus    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	stylePanel     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const helpText = "←↑↓→ move · space pick up · enter drop · x return · p play · +/- volume · v validate · esc cancel · q quit"

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render(m.view.Title))
	b.WriteString("\n\n")

	b.WriteString(m.renderPool())
	b.WriteString("\n")
	for i, g := range m.view.Groups {
		b.WriteString(m.renderGroup(i+1, g))
		b.WriteString("\n")
	}

	if m.completion != nil {
		b.WriteString(renderScore(m.completion.Score))
		b.WriteString("\n")
	} else if m.view.CanValidate {
		b.WriteString(styleCorrect.Render("All items placed. Press v to validate."))
		b.WriteString("\n")
	}

	if m.held != nil {
		b.WriteString(styleHeld.Render(fmt.Sprintf("Holding item %d", m.held.ItemID())))
		b.WriteString("  ")
	}
	if m.status != "" {
		b.WriteString(styleStatus.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(styleSubtle.Render(fmt.Sprintf("volume %d%%", int(m.view.Playback.Volume*100+0.5))))
	b.WriteString("\n")
	b.WriteString(styleSubtle.Render(helpText))
	return b.String()
}

func (m Model) renderPool() string {
	var cells []string
	for i, it := range m.view.Pool {
		cells = append(cells, m.cell(0, i, m.itemLabel(it)))
	}
	line := strings.Join(cells, " ")
	switch {
	case len(m.view.Pool) == 0 && m.view.Hidden == 0:
		line = styleSubtle.Render("(every item is placed)")
	case m.view.Hidden > 0:
		line += " " + styleSubtle.Render(fmt.Sprintf("+%d more", m.view.Hidden))
	}
	return stylePanel.Render(styleHeader.Render("Sounds") + "\n" + line)
}

func (m Model) renderGroup(row int, g engine.GroupView) string {
	title := fmt.Sprintf("Group %d", g.ID)
	if g.BackgroundImage != "" {
		title += " " + styleSubtle.Render(path.Base(g.BackgroundImage))
	}

	cells := make([]string, 0, len(g.Slots))
	for i, s := range g.Slots {
		label := "   empty   "
		if s.Occupant != nil {
			label = m.itemLabel(*s.Occupant)
		}
		switch s.Verdict {
		case engine.VerdictCorrect:
			label = styleCorrect.Render("✓ " + label)
		case engine.VerdictIncorrect:
			label = styleIncorrect.Render("✗ " + label)
		}
		cells = append(cells, m.cell(row, i, label))
	}
	return stylePanel.Render(styleHeader.Render(title) + "\n" + strings.Join(cells, " "))
}

func (m Model) itemLabel(it engine.ItemView) string {
	if it.Missing {
		return styleMissing.Render(it.Label)
	}
	return it.Glyph + " " + it.Label
}

func (m Model) cell(row, col int, label string) string {
	if m.cur.row == row && m.cur.col == col {
		return styleCursor.Render("[" + label + "]")
	}
	return " " + label + " "
}

func renderScore(s domain.Score) string {
	text := fmt.Sprintf("Score: %d/%d (%d%%)", s.Correct, s.Total, s.Percentage)
	switch s.Grade() {
	case domain.GradeGood:
		return styleCorrect.Render(text)
	case domain.GradeFair:
		return stylePartial.Render(text)
	default:
		return styleIncorrect.Render(text)
	}
}
