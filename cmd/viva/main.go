// Package main provides the viva CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keshav2232/viva/internal/config"
	"github.com/keshav2232/viva/internal/logging"
)

var (
	version    = "0.1.0"
	configPath string
	pretty     = true
	jsonOut    bool
	cfg        *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "viva",
		Short: "Spoken viva practice with an AI examiner",
		Long: `viva: practice oral examinations against an AI examiner persona.

Usage modes:
  viva serve            Run the HTTP API (and the frontend, if configured)
  viva analyze <glob>   Measure filler words in transcript files
  viva users            List registered candidates
  viva report [id]      Show archived session reports`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

			// Colour only when writing to a terminal.
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
				if !cmd.Flags().Changed("pretty") {
					pretty = false
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $VIVA_CONFIG or config/<CONFIG_ENV>/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show viva version",
		// Version needs no config.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("viva version %s\n", version)
		},
	}
}
