package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepgraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of stepgraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stepgraph version %s\n", strings.TrimSpace(stepgraph.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
