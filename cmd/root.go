package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ca-srg/yelpmcp/internal/logging"
)

// version is overridden at build time with -ldflags "-X github.com/ca-srg/yelpmcp/cmd.version=..."
var version = "dev"

var (
	envFile   string
	logLevel  string
	logPretty bool
)

var rootCmd = &cobra.Command{
	Use:   "yelpmcp",
	Short: "yelpmcp - MCP tool server for the RapidAPI Yelp business API",
	Long: `yelpmcp exposes the RapidAPI Yelp business API as MCP tools: business
search, details, reviews, menus, popular dishes, URL to id lookup and an
upcheck, plus get_full_yelp_list which merges several search pages.

Configuration is loaded from environment variables, optionally seeded from a
.env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "Human readable console logs; overrides LOG_PRETTY")

	rootCmd.AddCommand(mcpServerCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(callCmd)
}

// initRuntime loads the dotenv file and configures logging before any
// subcommand reads its configuration.
func initRuntime(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	pretty := logPretty
	if !cmd.Flags().Changed("log-pretty") {
		pretty = os.Getenv("LOG_PRETTY") == "true"
	}

	logging.Setup(logging.Config{
		Level:  level,
		Pretty: pretty,
		Output: os.Stderr,
	})
	return nil
}
