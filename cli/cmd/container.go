package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"envdash/cli/style"
)

var containerVerbs = map[string]string{
	"start":   "Starting",
	"stop":    "Stopping",
	"restart": "Restarting",
	"kill":    "Killing",
}

func init() {
	for _, action := range []string{"start", "stop", "restart", "kill"} {
		rootCmd.AddCommand(newContainerCmd(action))
	}
}

func newContainerCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <server> <container>",
		Short: fmt.Sprintf("%s a container on a Docker host", capitalizeFirst(action)),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newActionModel(action, args[0], args[1]))
			finalModel, err := p.Run()
			if err != nil {
				return err
			}
			return finalModel.(actionModel).err
		},
	}
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// --- Messages ---

type actionDone struct{}
type actionErr struct{ err error }

// --- Model ---

type actionModel struct {
	action    string
	server    string
	container string
	spinner   spinner.Model
	done      bool
	err       error
}

func newActionModel(action, server, container string) actionModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(style.Yellow)
	return actionModel{
		action:    action,
		server:    server,
		container: container,
		spinner:   s,
	}
}

func (m actionModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		doAction(m.action, m.server, m.container),
	)
}

func (m actionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDone:
		m.done = true
		return m, tea.Quit

	case actionErr:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m actionModel) View() string {
	name := m.server + "/" + m.container
	if m.err != nil {
		return style.ErrorBox.Render(fmt.Sprintf("✗ %s %s failed: %s", m.action, name, m.err)) + "\n"
	}
	if m.done {
		return style.SuccessBox.Render(fmt.Sprintf("✓ %s %s", m.action, name)) + "\n"
	}
	return fmt.Sprintf("  %s %s %s...\n", m.spinner.View(), containerVerbs[m.action], style.Bold.Render(name))
}

func doAction(action, server, container string) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(200 * time.Millisecond) // brief delay so spinner is visible
		if err := client.ContainerAction(server, container, action); err != nil {
			return actionErr{err: err}
		}
		return actionDone{}
	}
}
