package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"envdash/cli/api"
	"envdash/cli/style"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <type> <server> <name> [key=value...]",
	Short: "Create or update an environment through Rundeck",
	Long: `Runs the deploy job of the environment type and waits for it to finish.
Extra key=value arguments are passed to the job as options, e.g.
  envdash deploy todoapp team1 alpha frontend=release-2`,
	Args: cobra.MinimumNArgs(3),
	RunE: runDeploy,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <server> <name>",
	Short: "Delete an environment through Rundeck",
	Args:  cobra.ExactArgs(3),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	options, err := parseOptions(args[3:])
	if err != nil {
		return err
	}
	envType, server, name := args[0], args[1], args[2]
	return runJob("Deploying", server, name, func() (*api.JobResult, error) {
		return client.Deploy(envType, server, name, options)
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	envType, server, name := args[0], args[1], args[2]
	return runJob("Deleting", server, name, func() (*api.JobResult, error) {
		return client.Delete(envType, server, name)
	})
}

func parseOptions(args []string) (map[string]string, error) {
	options := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("option %q: expected key=value", a)
		}
		options[k] = v
	}
	return options, nil
}

func runJob(verb, server, name string, call func() (*api.JobResult, error)) error {
	m := newJobModel(verb, server+"/"+name, call)

	// live status is optional; the HTTP call carries the result
	if sub, err := client.Subscribe(); err == nil {
		defer sub.Close()
		m.events = sub.Events
	}

	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	jm := finalModel.(jobModel)
	return jm.err
}

// --- Messages ---

type jobDone struct{ res *api.JobResult }
type jobErr struct{ err error }
type jobUpdate struct{ ev api.JobEvent }
type jobFeedClosed struct{}

// --- Model ---

type jobModel struct {
	verb    string
	target  string
	call    func() (*api.JobResult, error)
	events  <-chan api.Event
	spinner spinner.Model

	status    string
	polls     int
	permalink string
	res       *api.JobResult
	err       error
}

func newJobModel(verb, target string, call func() (*api.JobResult, error)) jobModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(style.Yellow)
	return jobModel{
		verb:    verb,
		target:  target,
		call:    call,
		spinner: s,
		status:  "submitting",
	}
}

func (m jobModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, doJob(m.call)}
	if m.events != nil {
		cmds = append(cmds, waitForJobEvent(m.events, m.target))
	}
	return tea.Batch(cmds...)
}

func (m jobModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err = fmt.Errorf("interrupted; the job keeps running on Rundeck")
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case jobUpdate:
		if msg.ev.Status != "" {
			m.status = msg.ev.Status
		}
		if msg.ev.Permalink != "" {
			m.permalink = msg.ev.Permalink
		}
		m.polls++
		return m, waitForJobEvent(m.events, m.target)

	case jobFeedClosed:
		return m, nil

	case jobDone:
		m.res = msg.res
		return m, tea.Quit

	case jobErr:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m jobModel) View() string {
	if m.err != nil {
		return style.ErrorBox.Render(fmt.Sprintf("✗ %s %s failed: %s", m.verb, m.target, m.err)) + "\n"
	}
	if m.res != nil {
		msg := fmt.Sprintf("✓ %s %s done", m.verb, m.target)
		if m.res.Execution != nil && m.res.Execution.Permalink != "" {
			msg += "\n  " + m.res.Execution.Permalink
		}
		return style.SuccessBox.Render(msg) + "\n"
	}

	line := fmt.Sprintf("  %s %s %s  %s", m.spinner.View(), m.verb, style.Bold.Render(m.target), style.StepRunning.Render(m.status))
	if m.polls > 0 {
		line += style.DimText.Render(fmt.Sprintf("  (%d updates)", m.polls))
	}
	if m.permalink != "" {
		line += "\n    " + style.DimText.Render(m.permalink)
	}
	return line + "\n"
}

func doJob(call func() (*api.JobResult, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := call()
		if err != nil {
			return jobErr{err: err}
		}
		return jobDone{res: res}
	}
}

// waitForJobEvent blocks until the next job event for target.
func waitForJobEvent(events <-chan api.Event, target string) tea.Cmd {
	return func() tea.Msg {
		for ev := range events {
			if ev.Target != target || !strings.HasPrefix(ev.Type, "job.") {
				continue
			}
			var je api.JobEvent
			if err := json.Unmarshal(ev.Payload, &je); err != nil {
				continue
			}
			return jobUpdate{ev: je}
		}
		return jobFeedClosed{}
	}
}
