// Command fsmctl drives a state machine described by a YAML or JSON document.
//
//	FSM_CONFIG=order.yaml fsmctl place ship
//	FSM_CONFIG=order.yaml fsmctl place item=42 note.text=hello ship
//	FSM_CONFIG=order.yaml FSM_INTERACTIVE=true fsmctl
//
// Arguments containing '=' are params of the message before them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amp-labs/fsm/logger"
	"github.com/amp-labs/fsm/shutdown"
	"github.com/amp-labs/fsm/telemetry"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const appName = "fsmctl"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	// stdout is reserved for machine state.
	if _, err := logger.ConfigureLogging(appName, logger.WithOutput(os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := shutdown.SetupHandler(context.Background())

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logger.Get(ctx).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	otelCfg, err := telemetry.LoadConfigFromEnv(ctx)
	if err != nil {
		logger.Get(ctx).Error("Invalid telemetry configuration", "error", err)
		os.Exit(1)
	}

	if err := telemetry.Initialize(ctx, otelCfg); err != nil {
		logger.Get(ctx).Warn("Tracing unavailable", "error", err)
	}

	code := 0

	if err := Run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logger.Get(ctx).Error("fsmctl failed", "error", err)

		code = 1
	}

	if err := telemetry.Shutdown(ctx); err != nil {
		logger.Get(ctx).Warn("Flushing traces failed", "error", err)
	}

	os.Exit(code)
}
