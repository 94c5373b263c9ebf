package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"envdash/cli/style"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the Docker hosts and the registry",
	Aliases: []string{"doctor"},
	RunE:    runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	h, err := client.Health()
	if err != nil {
		fmt.Println(style.ErrorBox.Render("Cannot reach envdash API at " + apiURL))
		return err
	}

	fmt.Println(style.Banner.Render("ENVDASH HEALTH"))

	for _, s := range h.Services {
		var label string
		switch s.Status {
		case "up":
			label = style.Healthy.Render("up")
		case "down":
			label = style.Unhealthy.Render("down")
		default:
			label = style.Warning.Render(s.Status)
		}
		line := fmt.Sprintf("  %s  %-20s %s", style.ServiceDot(s.Status), style.Bold.Render(s.Name), label)
		if s.Details != "" {
			line += "  " + style.DimText.Render(s.Details)
		}
		fmt.Println(line)
	}
	fmt.Println()

	if h.Status == "healthy" {
		fmt.Println(style.SuccessBox.Render("All services healthy"))
	} else {
		fmt.Println(style.ErrorBox.Render("Some services are down"))
	}
	return nil
}
