package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"envdash/api/model"
	"envdash/cli/style"
)

var envsCmd = &cobra.Command{
	Use:     "envs [type]",
	Short:   "List environments on all Docker hosts",
	Aliases: []string{"ls", "status"},
	Args:    cobra.MaximumNArgs(1),
	RunE:    runEnvs,
}

var envCmd = &cobra.Command{
	Use:   "env <type> <server> <name>",
	Short: "Show one environment and its containers",
	Args:  cobra.ExactArgs(3),
	RunE:  runEnv,
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured Docker hosts",
	RunE:  runServers,
}

func init() {
	rootCmd.AddCommand(envsCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(serversCmd)
}

func runEnvs(cmd *cobra.Command, args []string) error {
	envType := ""
	if len(args) == 1 {
		envType = args[0]
	}
	list, err := client.ListEnvironments(envType)
	if err != nil {
		return fmt.Errorf("listing environments: %w", err)
	}

	hosts := make([]string, 0, len(list.ServerStatus))
	for _, s := range list.ServerStatus {
		label := s.Name
		if !s.Up {
			label = style.Unhealthy.Render(s.Name + " (down)")
		}
		hosts = append(hosts, style.StatusDot(s.Up)+" "+label)
	}
	fmt.Println(style.Banner.Render("ENVIRONMENTS"))
	fmt.Println("  " + strings.Join(hosts, "   "))
	fmt.Println()

	if len(list.Environments) == 0 {
		fmt.Println(style.DimText.Render("  No environments found."))
		return nil
	}

	fmt.Printf("  %s%s%s%s%s\n",
		style.TableHeader.Render(padRight("NAME", 24)),
		style.TableHeader.Render(padRight("SERVER", 12)),
		style.TableHeader.Render(padRight("TYPE", 14)),
		style.TableHeader.Render(padRight("CONTAINERS", 12)),
		style.TableHeader.Render("MODIFIED"),
	)
	for _, env := range list.Environments {
		typ := env.Type
		if typ == "" {
			typ = "-"
		}
		fmt.Printf("  %s %s%s%s%s%s %s\n",
			style.LevelDot(string(env.State)),
			padRight(env.Name, 23),
			padRight(env.ServerName, 12),
			padRight(typ, 14),
			padRight(fmt.Sprintf("%d", len(env.Containers)), 12),
			style.LevelDot(string(env.Freshness)),
			style.DimText.Render(env.ModifiedAge),
		)
	}
	fmt.Println()
	return nil
}

func runEnv(cmd *cobra.Command, args []string) error {
	env, err := client.GetEnvironment(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Println(renderEnvironment(env))
	return nil
}

func renderEnvironment(env *model.Environment) string {
	var b strings.Builder
	b.WriteString(style.ServiceBadge.Render(env.Name) + "  " + style.DimText.Render("on "+env.ServerName) + "\n\n")
	b.WriteString(style.Key.Render("Type") + style.Val.Render(orDash(env.Type)) + "\n")
	b.WriteString(style.Key.Render("Created") + style.Val.Render(env.CreatedFormatted) + "\n")
	b.WriteString(style.Key.Render("Modified") + style.Val.Render(env.ModifiedFormatted) + " " +
		style.LevelDot(string(env.Freshness)) + " " + style.DimText.Render(env.ModifiedAge) + "\n")
	if env.Front.ServiceURL != "" {
		b.WriteString(style.Key.Render("Open") + style.Link.Render(env.Front.ServiceURL) + "\n")
	}
	b.WriteString("\n")

	for _, c := range env.Containers {
		line := fmt.Sprintf("%s %s%s",
			style.ContainerDot(c.State),
			padRight(c.ServiceName, 16),
			padRight(c.Version, 28),
		)
		line += style.DimText.Render(c.Status)
		if c.ServiceURL != "" {
			line += "  " + style.Link.Render(c.ServiceURL)
		}
		b.WriteString(line + "\n")
	}
	return style.LevelCard(string(env.State)).Render(strings.TrimRight(b.String(), "\n"))
}

func runServers(cmd *cobra.Command, args []string) error {
	list, err := client.ListServers()
	if err != nil {
		return err
	}
	fmt.Println(style.Banner.Render("SERVERS"))
	for _, s := range list.Servers {
		fmt.Printf("  %s%s%s\n",
			style.Bold.Render(padRight(s.Name, 12)),
			padRight(s.IP, 18),
			style.DimText.Render(s.BaseURL),
		)
	}
	if len(list.DBServers) > 0 {
		fmt.Println()
		fmt.Printf("  %s %s\n", style.Key.Render("Databases"), style.Val.Render(strings.Join(list.DBServers, ", ")))
	}
	fmt.Println()
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// padRight pads by display width so styled text lines up.
func padRight(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}
