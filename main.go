package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/connect4-backend/internal"
	"github.com/rocketscienceinc/connect4-backend/internal/config"
)

var cfgFile string

// main - is the entry point of the application. It wires the CLI and runs the chosen command.
func main() {
	rootCmd := &cobra.Command{
		Use:           "connect4",
		Short:         "Connect four game backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./config.yml", "Path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API together with the game list aggregator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			return app.RunApp(cmd.Context(), initLogger(conf), conf)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "aggregate",
		Short: "Run only the game list aggregator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			return app.RunAggregator(cmd.Context(), initLogger(conf), conf)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "app run failed: %v\n", err)
		os.Exit(1)
	}
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
