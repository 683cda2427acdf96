package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/listenex/internal/engine"
	mcpserver "github.com/felixgeelhaar/listenex/internal/mcp"
	"github.com/felixgeelhaar/listenex/internal/session"
)

// cmdMCP starts the MCP server. Without an address it serves on stdio, so
// logs go to the log file only.
func cmdMCP(args []string) error {
	addr := ""
	if len(args) > 0 {
		addr = args[0]
	}

	rt, err := newRuntime(addr != "")
	if err != nil {
		return err
	}
	defer rt.Close()

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rt.record(ctx); err != nil {
		return err
	}
	rt.report()

	// Agents see the whole pool at once and have no audio device.
	opts := append(rt.engineOptions(), engine.WithReveal(engine.RevealAll, 0))
	sessions := session.NewManager(rt.dispatcher, opts...)
	defer sessions.CloseAll()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		Sessions: sessions,
		Results:  rt.results,
		Version:  Version,
	})

	if addr != "" {
		fmt.Fprintf(os.Stderr, "MCP server listening on %s\n", addr)
		return mcpSrv.ServeHTTP(ctx, addr)
	}
	return mcpSrv.ServeStdio(ctx)
}
