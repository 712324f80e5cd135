package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/riskguard/internal/alerts"
	"github.com/Rajchodisetti/riskguard/internal/bridge"
	"github.com/Rajchodisetti/riskguard/internal/config"
	"github.com/Rajchodisetti/riskguard/internal/observ"
	"github.com/Rajchodisetti/riskguard/internal/risk"
)

var (
	demoConfigPath  string
	demoDuration    time.Duration
	demoMetricsAddr string
	demoShockAt     time.Duration
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Drive the engine with a simulated tick feed",
	Long: `Runs the engine against a random-walk price feed for two symbols,
admitting trades through the integration bridge. An optional price shock
partway through demonstrates the alert ladder and the emergency stop.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoConfigPath, "config", "", "path to YAML config (defaults used when empty)")
	demoCmd.Flags().DurationVar(&demoDuration, "duration", 30*time.Second, "how long to run the feed")
	demoCmd.Flags().StringVar(&demoMetricsAddr, "metrics-addr", "", "serve the metrics dump on this address (e.g. :8091)")
	demoCmd.Flags().DurationVar(&demoShockAt, "shock-at", 20*time.Second, "inject a price shock after this long (0 disables)")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(c *cobra.Command, args []string) error {
	root := config.Default()
	if demoConfigPath != "" {
		var err error
		root, err = config.Load(demoConfigPath)
		if err != nil {
			return err
		}
	}

	engine, err := risk.NewEngine(root.Engine)
	if err != nil {
		return err
	}
	br := bridge.New(engine)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if root.Webhook.Enabled {
		notifier := alerts.NewWebhookNotifier(root.Webhook)
		notifier.Start(ctx)
		defer notifier.Wait()
		engine.AddAlertCallback(notifier.Notify)
	}

	engine.AddEmergencyCallback(func(a risk.Alert) {
		fmt.Fprintf(os.Stderr, "!! EMERGENCY: %s\n", a.Message)
	})

	if demoMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observ.Handler())
			_ = http.ListenAndServe(demoMetricsAddr, mux)
		}()
	}

	if err := br.StartIntegration(); err != nil {
		return err
	}
	defer br.StopIntegration()

	feed(ctx, br, demoDuration, demoShockAt)

	status := br.GetIntegrationStatus()
	out, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(out))
	return nil
}

// feed runs a two-symbol random walk, attempting a trade every second.
func feed(ctx context.Context, br *bridge.Bridge, duration, shockAt time.Duration) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	prices := map[string]float64{"BTCUSD": 43000, "ETHUSD": 2300}
	positions := map[string]float64{}

	start := time.Now()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	shocked := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if time.Since(start) > duration {
			return
		}

		for symbol := range prices {
			drift := prices[symbol] * 0.0005 * (rng.Float64()*2 - 1)
			prices[symbol] += drift
			if !shocked && shockAt > 0 && time.Since(start) > shockAt && symbol == "BTCUSD" {
				prices[symbol] *= 0.88 // 12% drop
				shocked = true
				fmt.Fprintln(os.Stderr, "-- injecting price shock on BTCUSD")
			}
			br.UpdateMarketData(symbol, prices[symbol], 1+rng.Float64()*10)
		}

		// Attempt a small trade roughly once a second.
		if rng.Intn(4) == 0 {
			symbol := "BTCUSD"
			if rng.Intn(2) == 0 {
				symbol = "ETHUSD"
			}
			size := float64(rng.Intn(3)-1) * 0.5
			if size == 0 {
				size = 0.5
			}
			target := positions[symbol] + size
			if ok, reason := br.PreTradeCheck(symbol, size, prices[symbol]); ok {
				positions[symbol] = target
				br.UpdatePosition(symbol, target, prices[symbol])
			} else {
				fmt.Fprintf(os.Stderr, "denied %s %+.2f: %s\n", symbol, size, reason)
			}
		}
	}
}
