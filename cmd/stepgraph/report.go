package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show a stored run report, or list stored runs",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, _ := cmd.Flags().GetString("store")
		format := parseFormat(mustString(cmd, "format"))

		app := newApp(cmd, func(o *cli.Options) { o.Store = store })
		defer app.Close()
		ctx := context.Background()

		if len(args) == 0 {
			ids, err := app.Engine.Runs(ctx)
			if err != nil {
				cli.Exit(err)
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return
		}

		report, err := app.Engine.Report(ctx, args[0])
		if err != nil {
			cli.Exit(fmt.Errorf("run %s: %w", args[0], err))
		}
		if err := newPrinter(os.Stdout, format).Print(report, format); err != nil {
			cli.Exit(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("format", "o", "text", "Report format: text, json, yaml or markdown")
	reportCmd.Flags().String("store", "", "Report store: file or redis (default from settings)")
}
