package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pihole-wizard/pihole-wizard/internal/config"
	"github.com/pihole-wizard/pihole-wizard/internal/engine"
	"github.com/pihole-wizard/pihole-wizard/internal/prereq"
	"github.com/pihole-wizard/pihole-wizard/internal/runner"
	"github.com/pihole-wizard/pihole-wizard/internal/server"
	"github.com/pihole-wizard/pihole-wizard/internal/stats"
	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

var (
	serveConfigPath string
	serveVerbose    bool
)

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath, "path to config file")
	serveCmd.Flags().BoolVar(&serveVerbose, "verbose", false, "log every request")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Pi-hole Wizard service",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := clog.NewWithOptions(os.Stderr, clog.Options{
			ReportTimestamp: true,
			Prefix:          "wizard",
		})
		if serveVerbose {
			logger.SetLevel(clog.DebugLevel)
		}

		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// No config file yet: run with built-in defaults so the wizard
			// works out of the box.
			cfg = config.Default()
			logger.Info("no config file found, using defaults", "path", serveConfigPath)
		}

		if err := os.MkdirAll(cfg.Paths.DataDir, 0750); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		store, err := wizard.NewStore(filepath.Join(cfg.Paths.DataDir, "wizard.db"))
		if err != nil {
			return fmt.Errorf("opening wizard store: %w", err)
		}
		defer store.Close()

		eng, err := engine.New(cfg, runner.Exec{})
		if err != nil {
			return fmt.Errorf("starting engine: %w", err)
		}
		defer eng.Close()

		checker := prereq.New(runner.Exec{})
		tracker := stats.NewTracker(filepath.Join(cfg.Paths.DataDir, "stats.json"))

		opts := []server.Option{server.WithLogger(logger)}
		if cfg.Paths.FrontendDir != "" {
			if _, err := os.Stat(cfg.Paths.FrontendDir); err == nil {
				opts = append(opts, server.WithSPA(os.DirFS(cfg.Paths.FrontendDir)))
				logger.Info("serving frontend", "dir", cfg.Paths.FrontendDir)
			} else {
				logger.Warn("frontend dir not found, serving API only", "dir", cfg.Paths.FrontendDir)
			}
		}

		srv := server.New(cfg, store, eng, checker, tracker, opts...)

		logger.Info("pihole-wizard starting",
			"listen", srv.Addr(),
			"auth", cfg.Auth.Mode,
			"data", cfg.Paths.DataDir,
			"output", cfg.Paths.OutputDir,
		)

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case sig := <-stop:
			logger.Info("shutting down", "signal", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}
