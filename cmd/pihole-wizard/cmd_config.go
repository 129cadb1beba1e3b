package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
	"github.com/pihole-wizard/pihole-wizard/internal/ui"
)

var configShowPath string

func init() {
	configShowCmd.Flags().StringVar(&configShowPath, "config", config.DefaultConfigPath, "path to config file")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View the Pi-hole Wizard configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configShowPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println(ui.Cyan.Render("Service:"))
		fmt.Println(ui.Dim.Render("  Bind:      ") + ui.White.Render(fmt.Sprintf("%s:%d", cfg.Service.BindAddress, cfg.Service.Port)))
		fmt.Println(ui.Dim.Render("  Auth:      ") + ui.White.Render(cfg.Auth.Mode))
		fmt.Println()
		fmt.Println(ui.Cyan.Render("Paths:"))
		fmt.Println(ui.Dim.Render("  Data:      ") + ui.White.Render(cfg.Paths.DataDir))
		fmt.Println(ui.Dim.Render("  Output:    ") + ui.White.Render(cfg.Paths.OutputDir))
		if cfg.Paths.FrontendDir != "" {
			fmt.Println(ui.Dim.Render("  Frontend:  ") + ui.White.Render(cfg.Paths.FrontendDir))
		}
		fmt.Println()
		fmt.Println(ui.Cyan.Render("Install:"))
		fmt.Println(ui.Dim.Render("  Pi-hole:   ") + ui.White.Render(cfg.Install.PiholeImage))
		fmt.Println(ui.Dim.Render("  Unbound:   ") + ui.White.Render(cfg.Install.UnboundImage))
		fmt.Println(ui.Dim.Render("  Retries:   ") + ui.White.Render(fmt.Sprintf("%d (delay %ds)", cfg.Install.StepRetries, cfg.Install.RetryDelaySeconds)))
		fmt.Println(ui.Dim.Render("  Timeout:   ") + ui.White.Render(fmt.Sprintf("%d min per command", cfg.Install.CommandTimeoutMinutes)))
		fmt.Println()
		fmt.Println(ui.Dim.Render("Config file: " + configShowPath))

		return nil
	},
}
