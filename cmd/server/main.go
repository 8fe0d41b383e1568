/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the pro-forma engine API server.
  Handles configuration and graceful shutdown.

CONFIGURATION:
  Defaults, then .env, then PROFORMA_* environment variables, then flags.
  See config/config.go for the variables.

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: proforma.db)
               Use ":memory:" for in-memory database
  -seed        Model document stored as a scenario on startup
  -strict      Validate every model before computing
  -origins     Comma-separated CORS origins
  -log-level   debug, info, warn, error
  -log-format  text or json
  -env         .env file (default: .env)

EXAMPLES:
  # Run with file database
  ./server -db="./data/proforma.db"

  # Run in memory with a seed scenario
  ./server -db=":memory:" -seed=./scenarios/base.yaml

SEE ALSO:
  - api/run.go: Server lifecycle
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/warp/proforma-engine/api"
	"github.com/warp/proforma-engine/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	envFile := envFileArg(args)
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.String("env", envFile, ".env file")
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.Serve(ctx, cfg, logger)
}

// envFileArg finds -env before the full flag parse, since the .env file
// supplies the defaults the other flags override.
func envFileArg(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "env" || !strings.HasPrefix(a, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
