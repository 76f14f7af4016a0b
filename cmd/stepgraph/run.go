package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/aretw0/stepgraph/internal/metrics"
	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow",
	Long: `Builds the workflow into a graph, optionally prepares the environment (--fit)
and executes every step in dependency order. The report is printed and stored.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fit, _ := cmd.Flags().GetBool("fit")
		sequential, _ := cmd.Flags().GetBool("sequential")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		store, _ := cmd.Flags().GetString("store")
		runID, _ := cmd.Flags().GetString("run-id")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		format := parseFormat(mustString(cmd, "format"))

		wf, err := config.LoadWorkflow(args[0])
		if err != nil {
			cli.Exit(err)
		}

		var collectors *metrics.Collectors
		app := newApp(cmd, func(o *cli.Options) {
			o.Store = store
			o.Concurrency = concurrency
			if format == tui.FormatText {
				o.Output = os.Stdout
			}
			if metricsAddr != "" {
				collectors = metrics.New()
				o.Hooks = append(o.Hooks, collectors.Hooks())
			}
		})
		defer app.Close()

		if collectors != nil {
			srv := &http.Server{Addr: metricsAddr, Handler: collectors.Handler(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					app.Logger.Error("metrics server failed", "err", err)
				}
			}()
			defer srv.Shutdown(context.Background())
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		if sequential {
			res, err := app.Engine.RunSequential(ctx, wf)
			if err != nil {
				cli.Exit(err)
			}
			printSequential(res)
			if !res.Success {
				os.Exit(1)
			}
			return
		}

		report, err := app.Engine.Run(ctx, wf, stepgraph.RunOptions{Fit: fit, RunID: runID})
		if err != nil && report == nil {
			cli.Exit(err)
		}
		if err != nil {
			app.Logger.Warn("report not stored", "err", err)
		}
		if err := newPrinter(os.Stdout, format).Print(report, format); err != nil {
			cli.Exit(err)
		}
		if sig := ctx.Signal(); sig != nil {
			cli.PrintSystemMessage(os.Stderr, "Interrupted by %v", sig)
		}
		if !report.Success {
			os.Exit(1)
		}
	},
}

func printSequential(res domain.OperationResult) {
	if res.Success {
		fmt.Println("All steps succeeded.")
		return
	}
	if f := res.CompositeFailure; f != nil {
		fmt.Println(f.Error())
		if f.Suggestion != "" {
			fmt.Println("Suggestion:", f.Suggestion)
		}
		return
	}
	fmt.Println(res.ErrorMessage)
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("fit", false, "Prepare missing directories and containers before running")
	runCmd.Flags().Bool("sequential", false, "Run all steps as one fail-fast unit, ignoring depends_on")
	runCmd.Flags().Int("concurrency", 0, "Run up to N independent steps at once (default from settings)")
	runCmd.Flags().StringP("format", "o", "text", "Report format: text, json, yaml or markdown")
	runCmd.Flags().String("store", "", "Report store: memory, file or redis (default from settings)")
	runCmd.Flags().String("run-id", "", "Run id (default: random UUID)")
	runCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address while running")
}
