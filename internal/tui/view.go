package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/quotesync"
)

type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	online  lipgloss.Style
	offline lipgloss.Style
	success lipgloss.Style
	info    lipgloss.Style
	danger  lipgloss.Style
	prompt  lipgloss.Style
	table   table.Styles
}

func defaultStyles() styles {
	t := table.DefaultStyles()
	t.Header = t.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	t.Selected = t.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("62")).
		Bold(false)

	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		online:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		offline: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		table:   t,
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.halted != "" {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.styles.danger.Render("Acesso Não Autorizado"),
			m.halted,
			m.styles.muted.Render("Faça login novamente com `quotes login`. Pressione qualquer tecla para sair."),
		) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render("Cotações de Frete · " + m.periodLabel()))
	b.WriteString("  ")
	b.WriteString(m.connectionLabel())
	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render(m.summary()))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch {
	case m.confirm != nil:
		b.WriteString(m.styles.prompt.Render(fmt.Sprintf("Excluir a cotação de %s (%s)? [s/N]",
			m.confirm.Carrier, formatDate(m.confirm.QuoteDate))))
	case m.notice.Message != "":
		b.WriteString(m.noticeStyle(m.notice.Level).Render(m.notice.Message))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) periodLabel() string {
	if m.filter.Year == 0 {
		return "Todos os meses"
	}
	return fmt.Sprintf("%s de %d", model.MonthName(m.filter.Month), m.filter.Year)
}

func (m Model) connectionLabel() string {
	if m.online {
		return m.styles.online.Render("● online")
	}
	return m.styles.offline.Render("○ offline (dados locais)")
}

func (m Model) summary() string {
	closed := 0
	total := 0.0
	for _, q := range m.visible {
		total += q.Price
		if q.DealClosed {
			closed++
		}
	}
	return fmt.Sprintf("%d cotações · %d fechadas · %s", len(m.visible), closed, model.FormatCurrency(total))
}

func (m Model) noticeStyle(level quotesync.NoticeLevel) lipgloss.Style {
	switch level {
	case quotesync.NoticeSuccess:
		return m.styles.success
	case quotesync.NoticeError:
		return m.styles.danger
	default:
		return m.styles.info
	}
}
