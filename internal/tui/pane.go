package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
	"github.com/HaiFongPan/ducktransfer/internal/transfer"
	tuiconfig "github.com/HaiFongPan/ducktransfer/internal/tui/config"
	"github.com/HaiFongPan/ducktransfer/internal/tui/theme"
	"github.com/HaiFongPan/ducktransfer/internal/utils"
)

// pane is the navigation state of one side of the browser: its current
// path, the last listing and the table cursor.
type pane struct {
	side    transfer.Pane
	path    string
	entries []connector.Entry
	table   table.Model
	loading bool
}

func newPane(side transfer.Pane) pane {
	t := table.New(
		table.WithColumns(paneColumns(tuiconfig.MinColumnNameWidth*2)),
		table.WithHeight(tuiconfig.DefaultTableHeight),
		table.WithFocused(side == transfer.PaneLocal),
		table.WithStyles(paneTableStyles()),
	)
	return pane{side: side, table: t}
}

func paneTableStyles() table.Styles {
	return table.Styles{
		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(theme.ColorBrightCyan)).
			BorderBottom(true).
			Bold(true).
			Foreground(lipgloss.Color(theme.ColorBrightCyan)),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.ColorWhite)).
			Background(lipgloss.Color(theme.ColorBrightBlue)).
			Bold(true),
		Cell: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.ColorWhite)),
	}
}

func paneColumns(nameWidth int) []table.Column {
	return []table.Column{
		{Title: "NAME", Width: nameWidth},
		{Title: "SIZE", Width: tuiconfig.DefaultColumnSizeWidth},
		{Title: "MODIFIED", Width: tuiconfig.DefaultColumnModifiedWidth},
	}
}

// setEntries replaces the listing and moves the cursor back to the top.
func (p *pane) setEntries(path string, entries []connector.Entry) {
	p.path = path
	p.entries = entries
	p.loading = false

	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		rows[i] = table.Row{
			entryLabel(e),
			utils.FormatSize(e.Size, e.IsDir),
			e.Modified,
		}
	}
	p.table.SetRows(rows)
	p.table.SetCursor(0)
}

// selected returns the entry under the cursor.
func (p *pane) selected() (connector.Entry, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.entries) {
		return connector.Entry{}, false
	}
	return p.entries[i], true
}

func (p *pane) setFocused(focused bool) {
	if focused {
		p.table.Focus()
	} else {
		p.table.Blur()
	}
}

// setSize fits the table into a pane of the given outer size.
func (p *pane) setSize(width, height int) {
	nameWidth := width - tuiconfig.DefaultColumnSizeWidth - tuiconfig.DefaultColumnModifiedWidth - 8
	if nameWidth < tuiconfig.MinColumnNameWidth {
		nameWidth = tuiconfig.MinColumnNameWidth
	}
	p.table.SetColumns(paneColumns(nameWidth))
	if height < 3 {
		height = 3
	}
	p.table.SetHeight(height)
}

func (p *pane) view(width, height int, focused bool, spinner string) string {
	title := p.side.String()
	if p.path != "" {
		title = fmt.Sprintf("%s: %s", title, p.path)
	}
	header := theme.CreatePaneTitleStyle(focused).Render(title)

	body := p.table.View()
	switch {
	case p.loading:
		body = theme.CreateLoadingStyle().Render(spinner + " Loading...")
	case len(p.entries) == 0:
		body = lipgloss.JoinVertical(lipgloss.Left,
			p.table.View(),
			theme.CreateSecondaryTextStyle().Render("(empty)"),
		)
	}

	return theme.CreatePaneStyle(width, height, focused).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

// entryLabel renders the name column: an icon, then the name colored by
// file category.
func entryLabel(e connector.Entry) string {
	category := entryCategory(e)
	name := e.DisplayName()
	if e.IsDir {
		name += "/"
	}
	colored := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.GetFileColor(category))).Render(name)
	return fmt.Sprintf("%s %s", theme.GetCategoryEmoji(category), colored)
}

func entryCategory(e connector.Entry) string {
	if e.IsDir {
		return "directory"
	}
	return utils.GetFileCategory(utils.DetectContentType(e.Name))
}
