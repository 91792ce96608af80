package main

import (
	"context"
	"fmt"

	"github.com/aretw0/playbook/internal/cli"
	"github.com/aretw0/playbook/internal/presentation/graph"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <protocolId|activeId>",
	Short: "Export a protocol as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of a protocol's steps. Given the ID of an
active protocol, completed and current steps are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(_ context.Context, app *cli.App, out *cli.Printer, args []string) error {
		var p domain.Protocol
		var overlay *graph.Overlay
		if exec, err := app.Engine.Active(args[0]); err == nil {
			p = *exec.Protocol
			overlay = graph.OverlayFor(exec)
		} else {
			var ok bool
			p, ok = app.Engine.Protocol(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrProtocolNotFound, args[0])
			}
		}
		fmt.Fprint(out.Out, graph.GenerateMermaid(&p, overlay))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
