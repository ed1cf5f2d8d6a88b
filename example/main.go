package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/raypak"
	"github.com/jpalmerr/raypak/example/mockdevice"
)

const demoToken = "demo-token"

func main() {
	// start the simulated heater
	device := mockdevice.New(demoToken, slog.Default())
	go func() {
		if err := device.ListenAndServe(":9999"); err != nil {
			slog.Error("mock device error", "error", err)
			os.Exit(1)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	m, err := raypak.New(
		raypak.WithDevice("http://localhost:9999", demoToken),
		raypak.WithPollingInterval(raypak.MinPollingInterval),
		raypak.WithPort(8080),
		raypak.WithTitle("Raypak Demo"),
		raypak.WithReadingsCallback(func(readings []raypak.Reading) {
			for _, r := range readings {
				if r.Key == "inlet_temperature" {
					slog.Info("water temperature", "value", r.Value.String(), "unit", r.Unit)
				}
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Raypak Demo                                         ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Simulated heater on :9999, polled every 10s         ║")
	fmt.Println("  ║   Change the setpoint or mode from the dashboard      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("raypak error", "error", err)
		os.Exit(1)
	}
}
