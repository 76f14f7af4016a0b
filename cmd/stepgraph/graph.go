package main

import (
	"context"
	"fmt"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <workflow>",
	Short: "Export the execution graph as a Mermaid diagram",
	Long: `Builds the workflow and prints a Mermaid flowchart (graph TD) of its steps and
dependencies. With --run the node states of a stored run are painted on top.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runID, _ := cmd.Flags().GetString("run")

		wf, err := config.LoadWorkflow(args[0])
		if err != nil {
			cli.Exit(err)
		}
		app := newApp(cmd, nil)
		defer app.Close()

		built := app.Engine.Validate(wf)
		var overlay *graph.Overlay
		if runID != "" {
			report, err := app.Engine.Report(context.Background(), runID)
			if err != nil {
				cli.Exit(fmt.Errorf("run %s: %w", runID, err))
			}
			overlay = graph.OverlayFromReport(report)
		}

		fmt.Print(graph.GenerateMermaid(built.Graph, overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Paint the node states of this stored run")
}
