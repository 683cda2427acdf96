//go:build js && wasm

// Command listenex-wasm is the browser engine shipped in exported bundles as
// engine.wasm. It registers globalThis.listenex and waits for the page.
package main

import (
	"log/slog"
	"os"

	"github.com/felixgeelhaar/listenex/internal/webui"
)

func main() {
	// wasm_exec.js routes stderr to console.error.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	webui.NewApp(logger).Register()
	select {}
}
