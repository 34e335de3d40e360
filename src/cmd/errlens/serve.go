package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"errlens-agent/src/api"
	"errlens-agent/src/browser"
	"errlens-agent/src/config"
	"errlens-agent/src/contracts"
	"errlens-agent/src/gate"
	"errlens-agent/src/transport"
	"errlens-agent/src/tui"
)

const shutdownTimeout = 5 * time.Second

var (
	serveTUI   bool
	watchURL   string
	headless   bool
	controlURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ingestion, analysis and the HTTP API",
	Long: `Start the background side: events arriving over HTTP (POST /v1/events) or
Redpanda are stored, analysed one at a time and pushed to displays.

With --tui the live error console runs in this terminal. With --watch a
browser tab is opened on URL and its faults are captured in-process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := signalContext()
		return runServe(ctx)
	},
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown signal received, stopping...")
		cancel()
	}()
	return ctx
}

func runServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := newRuntime(ctx, loader, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	stopWatch, err := loader.Watch()
	if err != nil {
		log.Warn("[Config] Hot reload disabled: %v", err)
	} else {
		defer stopWatch()
	}
	loader.OnChange(func(cfg *config.Config) {
		log.Info("[Config] Capture %s for %d domain pattern(s), API key set: %v",
			enabledWord(cfg.Enabled), len(cfg.Domains), cfg.APIKey != "")
	})

	if err := rt.start(ctx); err != nil {
		return err
	}

	cfg := loader.Config()
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(rt.svc, rt.hub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("[API] Listening on http://%s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("[API] Shutdown error: %v", err)
		}
	}()

	if watchURL != "" {
		w := newWatcher(watchURL, func(from contracts.Sender) transport.Sender {
			return transport.NewAsync(transport.Logged(transport.NewBrokerSender(rt.broker, from), log))
		})
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("[BrowserWatcher] Stopped: %v", err)
			}
		}()
	}

	if serveTUI {
		notes := rt.hub.Subscribe(ctx)
		err := tui.Start(ctx, api.Local(rt.svc), notes)
		cancel()
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

func newWatcher(url string, senders browser.SenderFactory) *browser.Watcher {
	return browser.New(browser.Options{
		URL:        url,
		ControlURL: controlURL,
		Headless:   headless,
		Gate: func() *gate.Gate {
			cfg := loader.Config()
			return gate.New(cfg.Enabled, cfg.Domains)
		},
		Senders: senders,
		Logger:  log,
	})
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

var watchCmd = &cobra.Command{
	Use:   "watch URL",
	Short: "Open URL in a browser tab and capture its faults",
	Long: `Open URL in a Chrome tab driven over the DevTools protocol and forward
captured faults to a running errlens server (or to Redpanda when
REDPANDA_BROKERS is set). Capture only runs on hosts matching the configured
domain patterns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := signalContext()
		cfg := loader.Config()

		var senders browser.SenderFactory
		if len(cfg.RedpandaBrokers) > 0 {
			brk, err := openBroker(cfg, log)
			if err != nil {
				return err
			}
			defer brk.Close()
			senders = func(from contracts.Sender) transport.Sender {
				return transport.NewAsync(transport.Logged(transport.NewBrokerSender(brk, from), log))
			}
		} else {
			base := defaultServerURL()
			senders = func(from contracts.Sender) transport.Sender {
				return transport.NewAsync(transport.Logged(transport.NewHTTPSender(base, from), log))
			}
		}

		err := newWatcher(args[0], senders).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveTUI, "tui", false, "Show the live error console in this terminal")
	serveCmd.Flags().StringVar(&watchURL, "watch", "", "Open this URL in a browser tab and capture its faults")

	for _, c := range []*cobra.Command{serveCmd, watchCmd} {
		c.Flags().BoolVar(&headless, "headless", false, "Run the launched browser headless")
		c.Flags().StringVar(&controlURL, "control-url", "", "DevTools WebSocket URL of a running browser")
	}
	watchCmd.Flags().StringVar(&serverURL, "server", "", "errlens server URL (default from listen_addr)")

	rootCmd.AddCommand(serveCmd, watchCmd)
}
