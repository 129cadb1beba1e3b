package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pihole-wizard/pihole-wizard/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pihole-wizard %s\n", version.Version)
	},
}
