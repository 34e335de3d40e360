package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"errlens-agent/src/config"
	"errlens-agent/src/gate"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the local configuration file",
	Long: `Show or change the configuration file given by --config. A running server
watching the same file picks changes up without a restart.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration (the API key is never shown)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loader.Config()
		view := cfg.View()
		fmt.Printf("config file:  %s\n", loader.Path())
		fmt.Printf("capture:      %s\n", enabledWord(view.Enabled))
		fmt.Printf("api key set:  %v\n", view.HasAPIKey)
		fmt.Printf("model:        %s\n", cfg.Model)
		fmt.Printf("store:        %s\n", cfg.Store)
		fmt.Printf("listen addr:  %s\n", cfg.ListenAddr)
		if len(view.Domains) == 0 {
			fmt.Println("domains:      (none, capture is inactive everywhere)")
			return nil
		}
		fmt.Println("domains:")
		for _, d := range view.Domains {
			fmt.Printf("  - %s\n", d)
		}
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key KEY",
	Short: "Save the analysis API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) { c.APIKey = strings.TrimSpace(args[0]) }, "API key saved.")
	},
}

var configAddDomainCmd = &cobra.Command{
	Use:   "add-domain PATTERN",
	Short: "Allow capture on hosts matching PATTERN (e.g. *.example.com)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := strings.TrimSpace(args[0])
		if pattern == "" {
			return fmt.Errorf("pattern must not be empty")
		}
		return updateConfig(func(c *config.Config) {
			for _, d := range c.Domains {
				if d == pattern {
					return
				}
			}
			c.Domains = append(c.Domains, pattern)
		}, fmt.Sprintf("Added %s.", pattern))
	},
}

var configRemoveDomainCmd = &cobra.Command{
	Use:   "remove-domain PATTERN",
	Short: "Stop capturing on hosts matching PATTERN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) {
			kept := c.Domains[:0]
			for _, d := range c.Domains {
				if d != args[0] {
					kept = append(kept, d)
				}
			}
			c.Domains = kept
		}, fmt.Sprintf("Removed %s.", args[0]))
	},
}

var configEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn capture on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) { c.Enabled = true }, "Capture enabled.")
	},
}

var configDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn capture off everywhere",
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(c *config.Config) { c.Enabled = false }, "Capture disabled.")
	},
}

var configTestDomainCmd = &cobra.Command{
	Use:   "test-domain HOST",
	Short: "Check HOST against the local configuration without a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loader.Config()
		if gate.New(cfg.Enabled, cfg.Domains).Allowed(args[0]) {
			fmt.Printf("%s: capture active\n", args[0])
		} else {
			fmt.Printf("%s: capture disabled\n", args[0])
		}
	},
}

func updateConfig(fn func(*config.Config), done string) error {
	if loader.Path() == "" {
		return fmt.Errorf("no config file given; pass --config")
	}
	if _, err := loader.Update(fn); err != nil {
		return err
	}
	fmt.Println(done)
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetKeyCmd, configAddDomainCmd,
		configRemoveDomainCmd, configEnableCmd, configDisableCmd, configTestDomainCmd)
	rootCmd.AddCommand(configCmd)
}
