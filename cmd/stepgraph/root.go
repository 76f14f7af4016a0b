package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stepgraph/internal/cli"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stepgraph",
	Short: "stepgraph builds, prepares and runs workflows of typed steps",
	Long: `stepgraph turns a list of steps (mkdir, copy, shell, python, docker, ...) into a
dependency graph, prepares the directories and containers the graph expects and
runs it in order, skipping the dependents of failed steps.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Workspace directory steps run in")
	rootCmd.PersistentFlags().Bool("debug", false, "Log engine events to stderr")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional file with STEPGRAPH_* settings")
}

// loadOptions reads the persistent flags and the settings they point to.
func loadOptions(cmd *cobra.Command) (cli.Options, error) {
	dir, _ := cmd.Flags().GetString("dir")
	debug, _ := cmd.Flags().GetBool("debug")
	envFile, _ := cmd.Flags().GetString("env-file")

	settings, err := config.LoadSettings(envFile)
	if err != nil {
		return cli.Options{}, err
	}
	return cli.Options{Dir: dir, Debug: debug, Settings: settings}, nil
}

// newApp builds the engine for commands that need one.
func newApp(cmd *cobra.Command, customize func(*cli.Options)) *cli.App {
	opts, err := loadOptions(cmd)
	if err != nil {
		cli.Exit(err)
	}
	if customize != nil {
		customize(&opts)
	}
	app, err := cli.NewApp(opts)
	if err != nil {
		cli.Exit(err)
	}
	return app
}
