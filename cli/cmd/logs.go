package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"envdash/cli/style"
)

var (
	logLines int
	logPlain bool
)

var logsCmd = &cobra.Command{
	Use:   "logs <server> <container>",
	Short: "Show the last lines of a container's log",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logLines, "lines", "n", 200, "number of lines from the end of the log")
	logsCmd.Flags().BoolVar(&logPlain, "plain", false, "print to stdout instead of the pager")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	server, container := args[0], args[1]
	if logPlain {
		out, err := client.Logs(server, container, logLines)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	p := tea.NewProgram(newLogsModel(server, container, logLines), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	return finalModel.(logsModel).err
}

// --- Messages ---

type logsLoaded struct{ text string }
type logsError struct{ err error }

// --- Model ---

type logsModel struct {
	server    string
	container string
	lines     int
	viewport  viewport.Model
	content   string
	loaded    bool
	ready     bool
	err       error
}

func newLogsModel(server, container string, lines int) logsModel {
	return logsModel{server: server, container: container, lines: lines}
}

func (m logsModel) Init() tea.Cmd {
	return fetchLogs(m.server, m.container, m.lines)
}

func (m logsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, fetchLogs(m.server, m.container, m.lines)
		}

	case tea.WindowSizeMsg:
		headerHeight := 3
		m.viewport = viewport.New(msg.Width, msg.Height-headerHeight)
		m.viewport.SetContent(m.content)
		m.viewport.GotoBottom()
		m.ready = true
		return m, nil

	case logsLoaded:
		m.content = strings.TrimRight(msg.text, "\n")
		if m.content == "" {
			m.content = style.DimText.Render("--- empty log ---")
		}
		m.loaded = true
		if m.ready {
			m.viewport.SetContent(m.content)
			m.viewport.GotoBottom()
		}
		return m, nil

	case logsError:
		m.err = msg.err
		return m, tea.Quit
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m logsModel) View() string {
	if m.err != nil {
		return style.ErrorBox.Render(fmt.Sprintf("Error: %s", m.err))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		style.Banner.Render("LOGS"),
		"  ",
		style.Bold.Render(m.server+"/"+m.container),
		"  ",
		style.DimText.Render("q to quit • r to reload • ↑↓ to scroll"),
	)

	if !m.ready || !m.loaded {
		return header + "\n\n" + style.DimText.Render("Loading...")
	}

	return header + "\n" + m.viewport.View()
}

func fetchLogs(server, container string, lines int) tea.Cmd {
	return func() tea.Msg {
		text, err := client.Logs(server, container, lines)
		if err != nil {
			return logsError{err: err}
		}
		return logsLoaded{text: text}
	}
}
