// Command clipforged runs the clipforge conversion daemon without the
// CLI wrapper, for service managers that want a dedicated binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"clipforge/internal/config"
	"clipforge/internal/daemon"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemon.Run(context.Background(), cfg, daemon.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
