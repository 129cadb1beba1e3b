package main

import (
	"github.com/spf13/cobra"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
	"github.com/pihole-wizard/pihole-wizard/internal/setup"
)

var setupConfigPath string

func init() {
	setupCmd.Flags().StringVar(&setupConfigPath, "config", config.DefaultConfigPath, "path to write the config file")
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the interactive setup",
	Long:  "Walks through service configuration (listen address, paths, authentication) and writes the config file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.Run(setupConfigPath)
	},
}
