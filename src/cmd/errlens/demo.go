package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"errlens-agent/src/analyze"
	"errlens-agent/src/api"
	"errlens-agent/src/broker"
	"errlens-agent/src/contracts"
	"errlens-agent/src/ingest"
	"errlens-agent/src/notify"
	"errlens-agent/src/store"
	"errlens-agent/src/tui"
)

var demoCmd = &cobra.Command{
	Use:         "demo",
	Short:       "Open the TUI on a realistic sample of captured errors",
	Long:        `Seeds an in-memory log with sample browser faults and analyzes them with canned answers. Nothing leaves the machine.`,
	Annotations: map[string]string{annotationScreen: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(signalContext())
		defer cancel()

		brk := broker.NewInMemoryBroker()
		defer brk.Close()
		hub := notify.NewHub(brk, log)
		defer hub.Close()
		svc := ingest.NewService(ingest.Options{
			Store:    store.NewMemoryStore(),
			Notifier: hub,
			Logger:   log,
		})
		queue := analyze.NewQueue(cannedAnalyzer(), svc, analyze.WithMinInterval(1500*time.Millisecond))
		svc.Attach(queue)
		go queue.Run(ctx)

		notes := hub.Subscribe(ctx)
		go func() {
			for i, ev := range generateSampleEvents(time.Now()) {
				// Stagger arrivals so the list fills in like a live session.
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(i) * 150 * time.Millisecond):
				}
				if _, err := svc.Receive(ctx, contracts.Envelope{
					Kind:    contracts.KindErrorCaptured,
					Payload: ev,
					Sender:  contracts.Sender{TabID: "demo", Origin: ev.OriginURL},
				}); err != nil {
					log.Error("[Demo] Failed to ingest sample: %v", err)
				}
			}
		}()

		if err := tui.Start(ctx, api.Local(svc), notes); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// cannedAnalyzer answers from a fixed table keyed by event type. Resource
// errors always fail so the retry path can be tried out.
func cannedAnalyzer() analyze.Analyzer {
	return analyze.AnalyzerFunc(func(ctx context.Context, ev contracts.Event) (string, error) {
		switch ev.Type {
		case contracts.TypeResourceError:
			return "", errors.New("Rate limited by the analysis service (requeue the event later)")
		case contracts.TypeUncaughtException, contracts.TypeConsoleError:
			return `{"severity":"high","explanation":"A property was read from a value that is undefined at runtime.","cause":"The component renders before its data has loaded.","fix":"Guard the access or render a loading state until the request resolves.","prevention":"Enable strict null checks and type the API response."}`, nil
		case contracts.TypeNetworkError, contracts.TypeNetworkTimeout:
			return `{"severity":"critical","explanation":"A backend request failed, so the page shows stale or missing data.","cause":"The upstream service returned an error or did not answer in time.","fix":"Check the service health and add a retry with backoff on the client.","prevention":"Alert on error rate for this endpoint."}`, nil
		case contracts.TypeCSPViolation:
			return `{"severity":"medium","explanation":"The Content-Security-Policy blocked a script from an unlisted origin.","cause":"A third-party tag was added without updating script-src.","fix":"Add the origin to script-src or self-host the script.","prevention":"Review CSP changes together with tag manager changes."}`, nil
		default:
			return "This is usually harmless, but it is worth watching if it keeps happening on the same page.", nil
		}
	})
}

func generateSampleEvents(now time.Time) []contracts.Event {
	ua := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0 Safari/537.36"
	vp := contracts.Viewport{Width: 1440, Height: 900}
	at := func(offset int) time.Time { return now.Add(time.Duration(offset) * time.Second) }

	return []contracts.Event{
		{
			Type:      contracts.TypeUncaughtException,
			Category:  contracts.CategoryJavaScript,
			Message:   "TypeError: Cannot read properties of undefined (reading 'price')",
			Stack:     "TypeError: Cannot read properties of undefined (reading 'price')\n    at CartTotal (https://shop.example.com/assets/app.4f2c.js:1:48211)\n    at renderWithHooks (https://shop.example.com/assets/vendor.91ab.js:2:10932)\n    at mountIndeterminateComponent (https://shop.example.com/assets/vendor.91ab.js:2:13861)",
			Filename:  "https://shop.example.com/assets/app.4f2c.js",
			Lineno:    1,
			Colno:     48211,
			OriginURL: "https://shop.example.com/cart",
			Timestamp: at(0),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeNetworkError,
			Category:  contracts.CategoryNetwork,
			Message:   "Fetch failed: 502 Bad Gateway for POST /api/checkout",
			Metadata:  map[string]any{"method": "POST", "status": 502, "duration": 1843},
			OriginURL: "https://shop.example.com/checkout",
			Timestamp: at(1),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeConsoleError,
			Category:  contracts.CategoryJavaScript,
			Message:   "Warning: Each child in a list should have a unique \"key\" prop.",
			Source:    "console",
			OriginURL: "https://shop.example.com/products",
			Timestamp: at(2),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeResourceError,
			Category:  contracts.CategoryNetwork,
			Message:   "Failed to load IMG: https://cdn.example.com/img/hero@2x.webp",
			Filename:  "https://cdn.example.com/img/hero@2x.webp",
			Metadata:  map[string]any{"tagName": "IMG"},
			OriginURL: "https://shop.example.com/",
			Timestamp: at(3),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeCSPViolation,
			Category:  contracts.CategoryCSP,
			Message:   "CSP violation: script-src blocked https://tags.tracker.example/t.js",
			Metadata:  map[string]any{"violatedDirective": "script-src", "blockedURI": "https://tags.tracker.example/t.js"},
			OriginURL: "https://shop.example.com/",
			Timestamp: at(4),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeNetworkTimeout,
			Category:  contracts.CategoryNetwork,
			Message:   "Request timed out: GET /api/recommendations",
			Metadata:  map[string]any{"method": "GET", "duration": 30000},
			OriginURL: "https://shop.example.com/products/42",
			Timestamp: at(5),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeLongTask,
			Category:  contracts.CategoryPerformance,
			Message:   "Long task blocked the main thread for 412ms",
			Metadata:  map[string]any{"duration": 412},
			OriginURL: "https://shop.example.com/search?q=boots",
			Timestamp: at(6),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeLayoutShift,
			Category:  contracts.CategoryPerformance,
			Message:   "Layout shift of 0.27 without recent input",
			Metadata:  map[string]any{"value": 0.27},
			OriginURL: "https://shop.example.com/",
			Timestamp: at(7),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeDeprecation,
			Category:  contracts.CategoryDeprecation,
			Message:   "Deprecation: Synchronous XMLHttpRequest on the main thread is deprecated",
			OriginURL: "https://shop.example.com/account",
			Timestamp: at(8),
			UserAgent: ua,
			Viewport:  vp,
		},
		{
			Type:      contracts.TypeUnhandledRejection,
			Category:  contracts.CategoryJavaScript,
			Message:   "Unhandled promise rejection: AbortError: The user aborted a request.",
			OriginURL: "https://shop.example.com/search?q=boots",
			Timestamp: at(9),
			UserAgent: ua,
			Viewport:  vp,
		},
	}
}

func init() {
	rootCmd.AddCommand(demoCmd)
}
