package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"errlens-agent/src/api"
	"errlens-agent/src/contracts"
	"errlens-agent/src/mcp"
	"errlens-agent/src/sanitize"
	"errlens-agent/src/tui"
)

var jsonOutput bool

func backend() api.Backend {
	return api.NewClient(defaultServerURL())
}

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List, clear or requeue captured errors on a running server",
}

var errorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured errors, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := backend().Errors(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}
		printEvents(events)
		return nil
	},
}

func printEvents(events []contracts.Event) {
	if len(events) == 0 {
		fmt.Println("No errors captured.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSEVERITY\tTYPE\tMESSAGE")
	for _, ev := range events {
		severity := "-"
		if ev.Status == contracts.StatusCompleted && ev.Analysis != nil {
			severity = string(ev.Analysis.Severity)
		}
		msg := strings.Join(strings.Fields(sanitize.Clean(ev.Message)), " ")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.ID, ev.Status, severity, ev.Type, sanitize.Truncate(msg, 80))
	}
	tw.Flush()
}

var errorsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every captured error",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := backend().Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Cleared all errors.")
		return nil
	},
}

var errorsRequeueCmd = &cobra.Command{
	Use:   "requeue ID",
	Short: "Send a failed error back for analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := backend().Requeue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Requeued %s (%s)\n", ev.ID, ev.Status)
		return nil
	},
}

var checkDomainCmd = &cobra.Command{
	Use:   "check-domain HOST",
	Short: "Report whether capture is active on HOST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		allowed, err := backend().CheckDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if allowed {
			fmt.Printf("%s: capture active\n", args[0])
		} else {
			fmt.Printf("%s: capture disabled\n", args[0])
		}
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:         "tui",
	Short:       "Show the live error console for a running server",
	Annotations: map[string]string{annotationScreen: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Start(signalContext(), backend(), nil)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the error log to agents over MCP (stdio)",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing get_errors,
clear_errors, get_config, check_domain and requeue_error against a running
errlens server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(backend(), version).Run()
	},
}

func init() {
	errorsListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON")
	errorsCmd.AddCommand(errorsListCmd, errorsClearCmd, errorsRequeueCmd)

	for _, c := range []*cobra.Command{errorsCmd, checkDomainCmd, tuiCmd, mcpCmd} {
		c.PersistentFlags().StringVar(&serverURL, "server", "", "errlens server URL (default from listen_addr)")
	}

	rootCmd.AddCommand(errorsCmd, checkDomainCmd, tuiCmd, mcpCmd)
}

