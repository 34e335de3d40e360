// Package main provides the errlens CLI: the ingestion and analysis server,
// the browser watcher and the client commands that query a running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"errlens-agent/src/config"
	"errlens-agent/src/logger"
)

// annotationScreen marks commands that draw a full-screen console.
const annotationScreen = "screen"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string
	serverURL  string

	loader *config.Loader
	log    logger.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "errlens",
	Short: "ErrLens - captures browser errors and explains them",
	Long: `ErrLens captures runtime faults from web pages (console errors, uncaught
exceptions, failed requests, CSP violations, performance problems), keeps a
bounded log of them and asks a language model to explain each one.

Run 'errlens serve' to start ingestion and analysis, then point a browser at
a page with 'errlens watch URL' or 'errlens serve --watch URL'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		level := logLevel
		if level == "" {
			level = cfg.LogLevel
		}
		// The console owns the terminal; anything printed would corrupt it.
		if cmd.Annotations[annotationScreen] == "true" || serveTUI {
			log = logger.NewSilentLogger()
		} else {
			log = logger.NewWriterLogger(os.Stderr, logger.ParseLevel(level))
		}
		loader, err = config.NewLoader(configPath, log)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the errlens version",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("errlens %s\n", version)
	},
}

// defaultServerURL is the configured listen address as a URL.
func defaultServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	return "http://" + loader.Config().ListenAddr
}

func init() {
	defaultConfig := os.Getenv("ERRLENS_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "errlens.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
