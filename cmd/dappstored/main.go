package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"dappstore/config"
	"dappstore/core/events"
	"dappstore/core/types"
	"dappstore/native/curation"
	"dappstore/native/token"
	"dappstore/observability/logging"
	"dappstore/server"
	"dappstore/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DAPPSTORE_ENV"))
	logger := logging.Setup("dappstored", env)

	if err := run(*configPath, logger); err != nil {
		log.Fatalf("dappstored failed: %v", err)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	params, err := curation.NewParams(
		big.NewInt(cfg.Curve.Total),
		big.NewInt(cfg.Curve.Ceiling),
		big.NewInt(cfg.Curve.Decimals),
	)
	if err != nil {
		return err
	}
	engine, err := curation.NewEngine(params)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	store, err := storage.Open(filepath.Join(cfg.DataDir, "curation.db"), nil)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ledger := token.NewLedger()
	engine.SetState(store)
	engine.SetToken(ledger)
	engine.SetEmitter(logEmitter{logger: logger})

	srv := server.New(engine, ledger, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	logger.Info("dappstored listening",
		"addr", cfg.ListenAddress,
		"max", params.Max.String(),
		"safeMax", params.SafeMax.String(),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// logEmitter surfaces engine events on the structured log so operators can
// follow ranking changes without an indexer.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{"type", evt.EventType()}
	if wire, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := wire.Event(); payload != nil {
			for k, v := range payload.Attributes {
				args = append(args, k, v)
			}
		}
	}
	l.logger.Info("curation event", args...)
}
