package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "puzzlectl",
		Short: "CLI tool for the puzzle session API",
		Long: `puzzlectl is a CLI tool for interacting with the puzzle session JSON API.

It can start and complete puzzle sessions, inspect their elapsed time,
manage players, and follow a session's events as they happen.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load saved credentials if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}
			if err := cfg.LoadOwner(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.Token)
			client.SetOwnerToken(cfg.OwnerToken, cfg.SaveOwner)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: PUZZLECTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Player token (env: PUZZLECTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: PUZZLECTL_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVar(&cfg.OwnerFile, "owner-file", cfg.OwnerFile, "Anonymous owner file path (env: PUZZLECTL_OWNER_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newCompleteCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newPlayerCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
