package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"envdash/cli/style"
)

var branchesCmd = &cobra.Command{
	Use:   "branches <repo>",
	Short: "List the branches pushed to the registry for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		branches, err := client.Branches(args[0])
		if err != nil {
			return err
		}
		if len(branches) == 0 {
			fmt.Println(style.DimText.Render("  No branches found."))
			return nil
		}
		for _, b := range branches {
			fmt.Println("  " + b)
		}
		return nil
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags <repo> <branch>",
	Short: "List the image tags of a branch, newest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := client.Tags(args[0], args[1])
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Println("  " + t)
		}
		return nil
	},
}

var appsCmd = &cobra.Command{
	Use:   "apps <type>",
	Short: "List the apps of an environment type and their branches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := client.Apps(args[0])
		if err != nil {
			return err
		}
		fmt.Println(style.Banner.Render("APPS · " + args[0]))
		fmt.Printf("  %s%s%s\n",
			style.TableHeader.Render(padRight("APP", 16)),
			style.TableHeader.Render(padRight("REPOSITORY", 28)),
			style.TableHeader.Render("BRANCHES"),
		)
		for _, a := range catalog.Apps {
			fmt.Printf("  %s%s%s\n",
				style.ServiceBadge.Render(padRight(a.NameCapitalized, 16)),
				padRight(a.RepoName, 28),
				style.DimText.Render(strings.Join(a.Branches, ", ")),
			)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(appsCmd)
}
