// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyabridge/internal/uibus"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Dashboard view of a running bridge's UI bus",
	Long: `monitor dials a running bridge's WebSocket UI endpoint and renders its
live key/value state as a dashboard, refreshing as updates arrive.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(_ *cobra.Command, _ []string) error {
	host := uiAddr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	wsURL := "ws://" + host + "/ws"

	password := ""
	if uiUsername != "" {
		var err error
		password, err = GetPassword("TUYA_UI_PASSWORD")
		if err != nil {
			return err
		}
	}

	conn, err := OpenWebSocketConnection(wsURL, uiUsername, password, false)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	defer conn.Close()

	ws, ok := conn.(*WebSocketConnection)
	if !ok {
		return fmt.Errorf("monitor: unexpected connection type")
	}

	updates := make(chan uibus.Update, 64)
	go readUpdates(ws.conn, updates)

	m := newMonitorModel(updates)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func readUpdates(conn *websocket.Conn, out chan<- uibus.Update) {
	defer close(out)
	for {
		var u uibus.Update
		if err := conn.ReadJSON(&u); err != nil {
			return
		}
		out <- u
	}
}

type monitorModel struct {
	values  map[string]string
	tbl     table.Model
	updates chan uibus.Update
	quit    bool
}

func newMonitorModel(updates chan uibus.Update) monitorModel {
	columns := []table.Column{
		{Title: "Key", Width: 18},
		{Title: "Value", Width: 24},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	return monitorModel{values: make(map[string]string), tbl: tbl, updates: updates}
}

type uiUpdateMsg uibus.Update
type busClosedMsg struct{}

func waitForUpdate(ch <-chan uibus.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return busClosedMsg{}
		}
		return uiUpdateMsg(u)
	}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.tbl.SetHeight(msg.Height - 4)
	case uiUpdateMsg:
		m.values[msg.Key] = msg.Value
		m.tbl.SetRows(m.rows())
		return m, waitForUpdate(m.updates)
	case busClosedMsg:
		m.quit = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m monitorModel) rows() []table.Row {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, table.Row{k, m.values[k]})
	}
	return rows
}

func (m monitorModel) View() string {
	if m.quit {
		return "Disconnected.\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var s strings.Builder
	s.WriteString(titleStyle.Render("TUYABRIDGE - UI BUS MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%d keys tracked | Press 'q' to quit", len(m.values))))
	s.WriteString("\n\n")
	s.WriteString(m.tbl.View())
	s.WriteString("\n")

	return s.String()
}
