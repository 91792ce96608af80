package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/playbook/internal/cli"
	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <input...>",
	Short: "Show which protocols an input would trigger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parseContext(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error {
			matches := app.Engine.Detect(ctx, strings.Join(args, " "), c)
			if out.JSON {
				return out.Value(matches)
			}
			if len(matches) == 0 {
				out.Line("No protocol matches.")
				return nil
			}
			var sb strings.Builder
			sb.WriteString("| Priority | ID | Name |\n|---|---|---|\n")
			for _, p := range matches {
				fmt.Fprintf(&sb, "| %s | `%s` | %s |\n", p.Metadata.Priority, p.ID, p.Name)
			}
			return out.Markdown(sb.String())
		})(cmd, args)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <protocolId>",
	Short: "Start a protocol and print its first step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parseContext(cmd)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error {
			exec, err := app.Engine.Start(ctx, args[0], c)
			if err != nil {
				return err
			}
			if out.JSON {
				return out.Value(domain.StartedView(exec))
			}
			out.Line("Started %s (%s)", exec.Protocol.Name, exec.ID)
			return printNext(ctx, app, out, exec.ID)
		})(cmd, args)
	},
}

var nextCmd = &cobra.Command{
	Use:   "next <activeId>",
	Short: "Print the next step of an active protocol",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error {
		return printNext(ctx, app, out, args[0])
	}),
}

// printNext shows the next action; a finished protocol prints its summary.
func printNext(ctx context.Context, app *cli.App, out *cli.Printer, activeID string) error {
	action, err := app.Engine.Next(ctx, activeID)
	if err != nil {
		return err
	}
	if out.JSON {
		return out.Value(action)
	}
	for _, id := range action.Skipped {
		out.Line("Skipped %s (condition not met)", id)
	}
	if action.Type == domain.ActionComplete {
		out.Line("%s", action.Message)
		out.Line("%s", action.Summary)
		out.Line("Run \"playbook finish %s\" to archive it.", activeID)
		return nil
	}
	return out.Markdown(action.Display)
}

var doneCmd = &cobra.Command{
	Use:   "done <activeId> <stepId>",
	Short: "Mark a step as completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result any
		if s, _ := cmd.Flags().GetString("result"); s != "" {
			result = decodeValue(s)
		}
		return withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error {
			if err := app.Engine.CompleteStep(ctx, args[0], args[1], result); err != nil {
				return err
			}
			display, err := app.Engine.DisplayProgress(ctx, args[0])
			if err != nil {
				return err
			}
			return out.Markdown(display)
		})(cmd, args)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <activeId>",
	Short: "Show the progress of an active protocol",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error {
		display, err := app.Engine.DisplayProgress(ctx, args[0])
		if err != nil {
			return err
		}
		return out.Markdown(display)
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available protocols",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		return withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, _ []string) error {
			protocols := app.Engine.ListProtocols(ctx, category)
			if out.JSON {
				return out.Value(protocols)
			}
			var sb strings.Builder
			sb.WriteString("| ID | Name | Category | Priority | Steps |\n|---|---|---|---|---|\n")
			for _, p := range protocols {
				fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %d |\n", p.ID, p.Name, p.Category, p.Priority, p.Steps)
			}
			return out.Markdown(sb.String())
		})(cmd, args)
	},
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List protocols in progress",
	RunE: withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, _ []string) error {
		active := app.Engine.ListActive(ctx)
		if out.JSON {
			return out.Value(active)
		}
		if len(active) == 0 {
			out.Line("No active protocols.")
			return nil
		}
		var sb strings.Builder
		sb.WriteString("| ID | Protocol | Progress | Current step | Started |\n|---|---|---|---|---|\n")
		for _, a := range active {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s |\n",
				a.ID, a.Protocol, runtime.ProgressBar(a.Progress.Completed, a.Progress.Total),
				a.CurrentStep, a.StartedAt.Format(time.RFC3339))
		}
		return out.Markdown(sb.String())
	}),
}

var finishCmd = &cobra.Command{
	Use:   "finish <activeId>",
	Short: "Archive an active protocol into the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed, _ := cmd.Flags().GetBool("failed")
		return withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, args []string) error {
			if err := app.Engine.Finish(ctx, args[0], !failed); err != nil {
				return err
			}
			if out.JSON {
				return out.Value(map[string]any{"id": args[0], "success": !failed})
			}
			out.Line("Archived %s (success: %t)", args[0], !failed)
			return nil
		})(cmd, args)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution statistics",
	RunE: withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, _ []string) error {
		stats, err := app.Engine.Statistics(ctx)
		if err != nil {
			return err
		}
		if out.JSON {
			return out.Value(stats)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## Statistics\n\n- **Executions:** %d\n- **Active:** %d\n- **Success rate:** %.1f%%\n",
			stats.TotalExecutions, stats.ActiveProtocols, stats.SuccessRate)
		if len(stats.RecentProtocols) > 0 {
			sb.WriteString("\n### Recent\n\n")
			for _, r := range stats.RecentProtocols {
				mark := "✅"
				if !r.Success {
					mark = "❌"
				}
				fmt.Fprintf(&sb, "- %s `%s` %s\n", mark, r.ID, r.CompletedAt.Format(time.RFC3339))
			}
		}
		return out.Markdown(sb.String())
	}),
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale active protocols",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *cli.App, out *cli.Printer, _ []string) error {
			maxAge := app.Config.CleanupMaxAge
			if cmd.Flags().Changed("max-age") {
				maxAge, _ = cmd.Flags().GetDuration("max-age")
			}
			removed, err := app.Engine.Cleanup(ctx, maxAge)
			if err != nil {
				return err
			}
			if out.JSON {
				if removed == nil {
					removed = []string{}
				}
				return out.Value(map[string]any{"removed": removed})
			}
			out.Line("Removed %d stale protocol(s)", len(removed))
			for _, id := range removed {
				out.Line("  %s", id)
			}
			return nil
		})(cmd, args)
	},
}

func init() {
	contextFlags(detectCmd)
	contextFlags(startCmd)
	doneCmd.Flags().String("result", "", "Step result (JSON values are decoded)")
	listCmd.Flags().String("category", "", "Filter by category")
	finishCmd.Flags().Bool("failed", false, "Record the protocol as unsuccessful")
	cleanupCmd.Flags().Duration("max-age", 24*time.Hour, "Remove protocols started longer ago than this")

	rootCmd.AddCommand(detectCmd, startCmd, nextCmd, doneCmd, statusCmd, listCmd,
		activeCmd, finishCmd, statsCmd, cleanupCmd)
}
