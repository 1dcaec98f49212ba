package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockmarket/internal/lobby"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const activityDepth = 12

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Padding(0, 1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#374151")).Padding(0, 1)
	newsStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

func newWatchCmd(apiBase, gameID *string) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a table live",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveGame(gameID)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			conn, err := newClient(apiBase).Watch(ctx, id)
			cancel()
			if err != nil {
				return err
			}
			defer conn.Close()

			events := make(chan lobby.Event, 64)
			errs := make(chan error, 1)
			go readEvents(conn, events, errs)

			if plain || !isTerminal() {
				return streamEvents(events, errs)
			}
			_, err = tea.NewProgram(newWatchModel(id, events, errs), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print events as lines instead of the live board")
	return cmd
}

func readEvents(conn *websocket.Conn, out chan<- lobby.Event, errs chan<- error) {
	defer close(out)
	for {
		var ev lobby.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				errs <- err
			}
			return
		}
		out <- ev
	}
}

func streamEvents(events <-chan lobby.Event, errs <-chan error) error {
	for ev := range events {
		for _, line := range describeEvent(ev) {
			fmt.Printf("%s  %s\n", ev.At.Local().Format("15:04:05"), line)
		}
	}
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

// describeEvent renders an event as log lines. Board updates have no line.
func describeEvent(ev lobby.Event) []string {
	switch ev.Type {
	case lobby.EventActivity:
		if ev.Actor == "" {
			return []string{ev.Message}
		}
		return []string{ev.Actor + " " + ev.Message}
	case lobby.EventFlashNews, lobby.EventNews:
		return ev.Lines
	case lobby.EventStarted:
		return []string{"game started: " + ev.Message}
	case lobby.EventMillionaire:
		return []string{ev.Message + "!"}
	case lobby.EventGameOver:
		return []string{"GAME OVER. Winners: " + strings.Join(ev.Lines, ", ")}
	case lobby.EventReset:
		return []string{"table reset by " + ev.Actor}
	}
	return nil
}

type eventMsg lobby.Event

type streamClosedMsg struct{ err error }

type watchModel struct {
	gameID string
	events <-chan lobby.Event
	errs   <-chan error

	state    *lobby.State
	market   table.Model
	players  table.Model
	activity []string
	news     []string
	status   string
}

func newWatchModel(gameID string, events <-chan lobby.Event, errs <-chan error) *watchModel {
	market := table.New(
		table.WithColumns([]table.Column{
			{Title: "Share", Width: 6},
			{Title: "Price", Width: 8},
			{Title: "Last", Width: 8},
			{Title: "Change", Width: 10},
		}),
		table.WithHeight(5),
	)
	players := table.New(
		table.WithColumns([]table.Column{
			{Title: "Player", Width: 14},
			{Title: "Balance", Width: 10},
			{Title: "Loan", Width: 9},
			{Title: "LEAD", Width: 6},
			{Title: "ZINC", Width: 6},
			{Title: "TIN", Width: 6},
			{Title: "GOLD", Width: 6},
			{Title: "Net worth", Width: 12},
		}),
		table.WithHeight(7),
	)
	return &watchModel{
		gameID:  gameID,
		events:  events,
		errs:    errs,
		market:  market,
		players: players,
		status:  "connected",
	}
}

func (m *watchModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m *watchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			select {
			case err := <-m.errs:
				return streamClosedMsg{err: err}
			default:
				return streamClosedMsg{}
			}
		}
		return eventMsg(ev)
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case eventMsg:
		m.apply(lobby.Event(msg))
		return m, m.waitForEvent()
	case streamClosedMsg:
		m.status = "stream closed"
		if msg.err != nil {
			m.status = "stream closed: " + msg.err.Error()
		}
	}
	return m, nil
}

func (m *watchModel) apply(ev lobby.Event) {
	switch ev.Type {
	case lobby.EventUpdate:
		st, err := decodeInto[lobby.State](ev.Payload)
		if err != nil {
			m.status = "bad update: " + err.Error()
			return
		}
		if m.state != nil && st.Version < m.state.Version {
			return
		}
		m.setState(st)
	case lobby.EventNews, lobby.EventFlashNews:
		m.news = ev.Lines
		return
	case lobby.EventReset:
		m.state = nil
		m.market.SetRows(nil)
		m.players.SetRows(nil)
		m.news = nil
	}
	for _, line := range describeEvent(ev) {
		m.activity = append(m.activity, ev.At.Local().Format("15:04:05")+"  "+line)
	}
	if n := len(m.activity); n > activityDepth {
		m.activity = m.activity[n-activityDepth:]
	}
}

func (m *watchModel) setState(st lobby.State) {
	m.state = &st
	rows := make([]table.Row, 0, len(st.Game.Market))
	for _, c := range st.Game.Market {
		change := signed(c.Price - c.LastPrice)
		if c.Suspended {
			change = "SUSPENDED"
		}
		rows = append(rows, table.Row{c.Symbol, "£" + comma(c.Price), "£" + comma(c.LastPrice), change})
	}
	m.market.SetRows(rows)

	rows = make([]table.Row, 0, len(st.Game.Players))
	for _, p := range st.Game.Players {
		name := p.Name
		switch {
		case p.Bankrupt:
			name += " (B)"
		case p.Name == st.Game.CurrentPlayer:
			name = "> " + name
		}
		rows = append(rows, table.Row{
			truncate(name, 14),
			"£" + comma(p.Balance),
			"£" + comma(p.Loan),
			comma(p.Holdings["LEAD"]),
			comma(p.Holdings["ZINC"]),
			comma(p.Holdings["TIN"]),
			comma(p.Holdings["GOLD"]),
			"£" + comma(p.NetWorth),
		})
	}
	m.players.SetRows(rows)
}

func (m *watchModel) View() string {
	var b strings.Builder
	header := "game " + m.gameID
	if st := m.state; st != nil {
		header = fmt.Sprintf("round %d  turn %d  %s  current: %s", st.Round, st.Turn, st.Status, st.Game.CurrentPlayer)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	board := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.market.View()),
		panelStyle.Render(m.players.View()),
	)
	b.WriteString(board)
	b.WriteString("\n")

	if len(m.news) > 0 {
		b.WriteString(panelStyle.Render(newsStyle.Render(strings.Join(m.news, "\n"))))
		b.WriteString("\n")
	}
	if len(m.activity) > 0 {
		b.WriteString(panelStyle.Render(strings.Join(m.activity, "\n")))
		b.WriteString("\n")
	}
	if st := m.state; st != nil && st.Final != nil {
		b.WriteString(newsStyle.Render("GAME OVER. Winners: " + strings.Join(st.Final.Winners, ", ")))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString(mutedStyle.Render("  q to quit"))
	return b.String()
}
