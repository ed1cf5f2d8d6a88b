// Standalone simulated heater for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/raypak serve -c example/raypak.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/raypak/example/mockdevice"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	token := flag.String("token", "demo-token", "accepted device token")
	flag.Parse()

	fmt.Printf("Mock heater starting on %s\n", *addr)
	fmt.Println("Water warms toward the setpoint in heat mode and cools when off")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := mockdevice.New(*token, logger).ListenAndServe(*addr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
