package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"envdash/cli/api"
)

var (
	apiURL   string
	apiToken string
	client   *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "envdash",
	Short: "Team environment dashboard CLI",
	Long: `envdash lists the team environments running on the Docker hosts,
deploys and deletes them through Rundeck, and controls their containers.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = api.New(apiURL, apiToken)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultURL := os.Getenv("ENVDASH_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:3000"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "envdash API URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("ENVDASH_TOKEN"), "API bearer token")
}
