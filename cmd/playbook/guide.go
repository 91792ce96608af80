package main

import (
	"os"
	"strings"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/internal/cli"
	"github.com/aretw0/playbook/internal/help"
	"github.com/aretw0/playbook/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var guideCmd = &cobra.Command{
	Use:       "guide [topic]",
	Short:     "Show usage guides",
	Long:      "Topics: " + strings.Join(help.Topics(), ", "),
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: help.Topics(),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := ""
		if len(args) > 0 {
			topic = args[0]
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		if f, ok := cmd.OutOrStdout().(*os.File); ok && !jsonMode && tui.IsTerminal(f) {
			tui.PrintBanner(f, strings.TrimSpace(playbook.Version))
		}
		return cli.NewPrinter(cmd.OutOrStdout(), jsonMode).Markdown(help.Topic(topic))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of playbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		p := cli.NewPrinter(cmd.OutOrStdout(), jsonMode)
		v := strings.TrimSpace(playbook.Version)
		if jsonMode {
			return p.Value(map[string]string{"version": v})
		}
		p.Line("playbook version %s", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(guideCmd, versionCmd)
}
