// Command voidindexd is a long-running background daemon that watches a
// developer workspace, chunks and embeds its source files, and answers
// nearest-neighbor semantic search queries over a line-delimited JSON
// protocol on stdin/stdout.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/void-indexd/internal/bridge"
	"github.com/dshills/void-indexd/internal/coordinator"
)

const (
	exitNormal   = 0
	exitPreStart = 1
	exitProtocol = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	log, err := zap.NewProduction()
	if err != nil {
		return exitPreStart
	}
	defer func() { _ = log.Sync() }()
	// zap.NewProduction defaults to stderr, reserving stdout entirely for
	// the RPC protocol.

	coord := coordinator.New(log)
	b := bridge.New(coord, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("voidindexd starting, listening on stdio")
		serveErr <- b.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		<-serveErr
		return exitNormal
	case err := <-serveErr:
		if err != nil {
			log.Error("protocol error", zap.Error(err))
			return exitProtocol
		}
		return exitNormal
	}
}
