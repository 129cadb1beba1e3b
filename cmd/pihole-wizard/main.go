package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pihole-wizard/pihole-wizard/internal/ui"
	"github.com/pihole-wizard/pihole-wizard/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "pihole-wizard",
	Short:   "Pi-hole Wizard — guided Pi-hole setup service",
	Version: version.Version,
}

func init() {
	rootCmd.Long = ui.Green.Render("Pi-hole Wizard") + " " + ui.Cyan.Render(version.Version) + "\n" +
		ui.Dim.Render("A guided setup service that installs and manages Pi-hole (and optionally Unbound) with Docker, driven from a browser.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
