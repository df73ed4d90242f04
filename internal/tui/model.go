// Package tui is a terminal host for the channel list: play, add, edit and
// delete channels from a bubbletea list.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/presenter"
	"github.com/voyagen/tvplayer/internal/service"
)

// Service executes commands on the application loop.
type Service interface {
	Dispatch(ctx context.Context, cmd service.Command) (service.Outcome, error)
}

type mode int

const (
	modeBrowse mode = iota
	modeMenu
	modeForm
)

var menuEntries = []string{"Edit", "Delete"}

// rowsMsg tells the model the presenter rows changed.
type rowsMsg struct{}

type activateMsg struct{ channel models.Channel }

type contextMsg struct {
	channel models.Channel
	anchor  presenter.Anchor
}

type notificationMsg struct{ text string }

type resultMsg struct {
	out  service.Outcome
	err  error
	done string
}

// channelItem implements list.DefaultItem.
type channelItem struct{ row presenter.Row }

func (i channelItem) FilterValue() string { return i.row.Name }
func (i channelItem) Title() string       { return i.row.Name }
func (i channelItem) Description() string {
	switch {
	case i.row.LogoURL == "":
		return "no logo"
	case i.row.Logo == nil:
		return "loading logo…"
	case i.row.Logo.Placeholder:
		return "logo unavailable"
	default:
		return "logo loaded"
	}
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}).
			PaddingLeft(2)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"}).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// Model is the bubbletea model.
type Model struct {
	ctx  context.Context
	svc  Service
	rows *presenter.Presenter

	list   list.Model
	mode   mode
	status string

	// context menu
	target     models.Channel
	menuCursor int

	// edit form
	inputs  []textinput.Model
	focus   int
	editing string // channel id, empty when adding
}

// New builds the model and binds it to rows. send delivers asynchronous
// messages (row changes, selection callbacks) to the running program and must
// not block.
func New(ctx context.Context, svc Service, rows *presenter.Presenter, send func(tea.Msg)) Model {
	rows.SetView(viewBridge{send: send})
	rows.SetCallbacks(
		func(ch models.Channel) { send(activateMsg{channel: ch}) },
		func(ch models.Channel, a presenter.Anchor) { send(contextMsg{channel: ch, anchor: a}) },
	)

	l := list.New(nil, list.NewDefaultDelegate(), 60, 20)
	l.Title = "Channels"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	m := Model{ctx: ctx, svc: svc, rows: rows, list: l, inputs: newInputs()}
	m.syncRows()
	return m
}

func newInputs() []textinput.Model {
	placeholders := []string{"Name", "Stream URL", "Logo URL"}
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		ti := textinput.New()
		ti.Placeholder = p
		ti.CharLimit = 2048
		ti.Width = 50
		inputs[i] = ti
	}
	return inputs
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
		return m, nil
	case rowsMsg:
		m.syncRows()
		return m, nil
	case notificationMsg:
		m.status = msg.text
		return m, nil
	case activateMsg:
		return m, m.dispatch(service.PlayChannel{ID: msg.channel.ID}, "Playing "+msg.channel.Name)
	case contextMsg:
		m.mode = modeMenu
		m.target = msg.channel
		m.menuCursor = 0
		return m, nil
	case resultMsg:
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.out.Warning != nil:
			m.status = "Warning: " + msg.out.Warning.Error()
		default:
			m.status = msg.done
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeMenu:
			return m.updateMenu(msg)
		case modeForm:
			return m.updateForm(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter":
		m.rows.Activate(m.list.Index())
		return m, nil
	case "m":
		i := m.list.Index()
		m.rows.ContextRequest(i, i)
		return m, nil
	case "a":
		return m.openForm("", models.EditRequest{})
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeBrowse
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(menuEntries)-1 {
			m.menuCursor++
		}
	case "e":
		return m.openForm(m.target.ID, models.EditRequestFor(m.target))
	case "d":
		return m.deleteTarget()
	case "enter":
		if menuEntries[m.menuCursor] == "Edit" {
			return m.openForm(m.target.ID, models.EditRequestFor(m.target))
		}
		return m.deleteTarget()
	}
	return m, nil
}

func (m Model) deleteTarget() (tea.Model, tea.Cmd) {
	m.mode = modeBrowse
	return m, m.dispatch(service.DeleteChannel{ID: m.target.ID}, "Deleted "+m.target.Name)
}

func (m Model) openForm(id string, req models.EditRequest) (tea.Model, tea.Cmd) {
	m.mode = modeForm
	m.editing = id
	m.inputs[0].SetValue(req.ChannelName)
	m.inputs[1].SetValue(req.ChannelURL)
	m.inputs[2].SetValue(req.ChannelLogo)
	cmd := m.focusInput(0)
	return m, cmd
}

func (m *Model) focusInput(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.finishForm(false)
	case "ctrl+s":
		return m.finishForm(true)
	case "enter":
		if m.focus == len(m.inputs)-1 {
			return m.finishForm(true)
		}
		cmd := m.focusInput(m.focus + 1)
		return m, cmd
	case "tab", "down":
		cmd := m.focusInput((m.focus + 1) % len(m.inputs))
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusInput((m.focus + len(m.inputs) - 1) % len(m.inputs))
		return m, cmd
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// finishForm hands the edit result to the controller. A cancelled result is
// dispatched too; the controller treats it as no mutation.
func (m Model) finishForm(ok bool) (tea.Model, tea.Cmd) {
	res := models.EditResult{
		EditRequest: models.EditRequest{
			ChannelName: strings.TrimSpace(m.inputs[0].Value()),
			ChannelURL:  strings.TrimSpace(m.inputs[1].Value()),
			ChannelLogo: strings.TrimSpace(m.inputs[2].Value()),
		},
		OK: ok,
	}
	if ok && res.ChannelURL == "" {
		m.status = "Stream URL is required"
		cmd := m.focusInput(1)
		return m, cmd
	}
	m.mode = modeBrowse
	m.focusInput(-1)

	done := "Cancelled"
	var cmd service.Command = service.AddChannel{Result: res}
	if m.editing != "" {
		cmd = service.EditChannel{ID: m.editing, Result: res}
		if ok {
			done = "Saved " + res.ChannelName
		}
	} else if ok {
		done = "Added " + res.ChannelName
	}
	return m, m.dispatch(cmd, done)
}

func (m Model) dispatch(cmd service.Command, done string) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		out, err := svc.Dispatch(ctx, cmd)
		return resultMsg{out: out, err: err, done: done}
	}
}

// syncRows rebuilds the list items from the presenter, keeping the cursor.
func (m *Model) syncRows() {
	rows := m.rows.Rows()
	items := make([]list.Item, len(rows))
	for i, r := range rows {
		items[i] = channelItem{row: r}
	}
	cursor := m.list.Index()
	m.list.SetItems(items)
	if cursor >= len(items) {
		cursor = len(items) - 1
	}
	if cursor >= 0 {
		m.list.Select(cursor)
	}
}

func (m Model) View() string {
	var b strings.Builder
	switch m.mode {
	case modeMenu:
		var menu strings.Builder
		fmt.Fprintf(&menu, "%s\n\n", m.target.Name)
		for i, e := range menuEntries {
			line := "  " + e
			if i == m.menuCursor {
				line = selectedStyle.Render("> " + e)
			}
			menu.WriteString(line + "\n")
		}
		b.WriteString(boxStyle.Render(strings.TrimRight(menu.String(), "\n")))
	case modeForm:
		title := "Add channel"
		if m.editing != "" {
			title = "Edit channel"
		}
		var form strings.Builder
		form.WriteString(title + "\n\n")
		for _, in := range m.inputs {
			form.WriteString(in.View() + "\n")
		}
		form.WriteString("\nenter next/save · esc cancel")
		b.WriteString(boxStyle.Render(form.String()))
	default:
		b.WriteString(m.list.View())
	}
	b.WriteString("\n")
	status := m.status
	if status == "" {
		status = "enter play · m menu · a add · q quit"
	}
	b.WriteString(statusStyle.Render(status))
	return b.String()
}

// viewBridge forwards presenter signals into the program as rowsMsg.
type viewBridge struct{ send func(tea.Msg) }

func (v viewBridge) RowInserted(int) { v.send(rowsMsg{}) }
func (v viewBridge) RowChanged(int)  { v.send(rowsMsg{}) }
func (v viewBridge) RowRemoved(int)  { v.send(rowsMsg{}) }
func (v viewBridge) RowsReset()      { v.send(rowsMsg{}) }
