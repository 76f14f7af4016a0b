package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow>",
	Short: "Check a workflow without running it",
	Long:  `Builds the workflow and reports rejected steps, broken dependencies and warnings.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wf, err := config.LoadWorkflow(args[0])
		if err != nil {
			cli.Exit(err)
		}
		app := newApp(cmd, func(o *cli.Options) { o.Store = "memory" })
		defer app.Close()

		res := app.Engine.Validate(wf)
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if !res.OK() {
			for _, msg := range res.Messages() {
				fmt.Printf("error: %s\n", msg)
			}
			fmt.Printf("Validation failed: %d error(s)\n", len(res.Errors))
			os.Exit(1)
		}
		fmt.Printf("Workflow is valid! ✅ (%d steps, %d edges)\n", res.Graph.Len(), res.Graph.EdgeCount())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
