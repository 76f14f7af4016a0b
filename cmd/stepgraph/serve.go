package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/stepgraph/internal/adapters/http"
	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/metrics"
	"github.com/aretw0/stepgraph/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves POST /runs, GET /runs, GET /runs/{id}, POST /graph, POST /validate, GET /metrics and GET /healthz.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		quiet, _ := cmd.Flags().GetBool("quiet")
		store, _ := cmd.Flags().GetString("store")

		collectors := metrics.New()
		app := newApp(cmd, func(o *cli.Options) {
			o.Store = store
			o.Hooks = append(o.Hooks, collectors.Hooks())
		})
		defer app.Close()

		handler := httpAdapter.NewHandler(app.Engine,
			httpAdapter.WithLogger(app.Logger),
			httpAdapter.WithMetricsHandler(collectors.Handler()),
		)

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			if !quiet {
				tui.PrintBanner(os.Stdout)
			}
			fmt.Printf("Starting stepgraph server on %s\n", srv.Addr)
			fmt.Printf("Workspace: %s\n", app.Engine.Workspace())
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding runs a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 30*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("stepgraph server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
	serveCmd.Flags().String("store", "", "Report store: memory, file or redis (default from settings)")
}
