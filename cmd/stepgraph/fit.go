package main

import (
	"context"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/spf13/cobra"
)

var fitCmd = &cobra.Command{
	Use:   "fit <workflow>",
	Short: "Prepare the environment a workflow expects",
	Long: `Inspects the directories, containers and images the workflow needs and creates
what is missing. With --dry-run nothing is changed and the plan is printed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		format := parseFormat(mustString(cmd, "format"))

		wf, err := config.LoadWorkflow(args[0])
		if err != nil {
			cli.Exit(err)
		}
		app := newApp(cmd, func(o *cli.Options) { o.Store = "memory" })
		defer app.Close()

		built := app.Engine.Validate(wf)
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		fitter := app.Engine.Fit
		if dryRun {
			fitter = app.Engine.Plan
		}
		summary, err := fitter(ctx, built.Graph)
		if err != nil {
			cli.Exit(err)
		}
		if err := newPrinter(os.Stdout, format).PrintFitting(summary, format); err != nil {
			cli.Exit(err)
		}

		unpreparable := false
		for _, m := range summary.Missing {
			if !m.Preparable {
				unpreparable = true
			}
		}
		if unpreparable || len(summary.FailedPreparations()) > 0 || len(summary.Errors) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(fitCmd)
	fitCmd.Flags().Bool("dry-run", false, "Only report what would be prepared")
	fitCmd.Flags().StringP("format", "o", "text", "Output format: text, json, yaml or markdown")
}
